package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"

	"microbonds/internal/ledger"
	"microbonds/pkg/domain"
)

// Methods exposed by the token stand-in.
const (
	MethodInit        = "new"
	MethodMint        = "nft_mint"
	MethodTransfer    = "nft_transfer"
	MethodMetadata    = "nft_metadata"
	MethodToken       = "nft_token"
	MethodTokensOwner = "nft_tokens_for_owner"
)

var (
	errTokenExists      = errors.New("token id already exists")
	errTokenNotFound    = errors.New("token not found")
	errNotTokenOwner    = errors.New("predecessor does not own the token")
	errNotContractOwner = errors.New("predecessor is not the contract owner")
	errRequiresOneYocto = errors.New("requires attached deposit of exactly 1 yoctoNEAR")
	errSelfTransfer     = errors.New("receiver is the current owner")
)

// ContractMetadata describes a deployed token contract.
type ContractMetadata struct {
	Spec          string  `json:"spec"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Icon          *string `json:"icon,omitempty"`
	BaseURI       *string `json:"base_uri,omitempty"`
	Reference     *string `json:"reference,omitempty"`
	ReferenceHash *string `json:"reference_hash,omitempty"`
}

// TokenMetadata describes a single minted token.
type TokenMetadata struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Media       *string `json:"media,omitempty"`
	Copies      *uint64 `json:"copies,omitempty"`
}

// Token is the view of a minted token.
type Token struct {
	TokenID  string           `json:"token_id"`
	OwnerID  domain.AccountID `json:"owner_id"`
	Metadata *TokenMetadata   `json:"metadata,omitempty"`
}

type initArgs struct {
	OwnerID  domain.AccountID `json:"owner_id"`
	Metadata ContractMetadata `json:"metadata"`
}

type mintArgs struct {
	TokenID    string           `json:"token_id"`
	Metadata   *TokenMetadata   `json:"metadata"`
	ReceiverID domain.AccountID `json:"receiver_id"`
}

type transferArgs struct {
	ReceiverID domain.AccountID `json:"receiver_id"`
	TokenID    string           `json:"token_id"`
	ApprovalID *uint64          `json:"approval_id,omitempty"`
	Memo       *string          `json:"memo,omitempty"`
}

type tokenArgs struct {
	TokenID string `json:"token_id"`
}

type tokensForOwnerArgs struct {
	AccountID domain.AccountID `json:"account_id"`
}

// tokenContract is a minimal non-fungible token contract: enough to
// initialize, mint, describe and transfer tokens.
type tokenContract struct {
	owner    domain.AccountID
	metadata ContractMetadata
	tokens   map[string]*Token
	order    []string
}

func initTokenContract(raw json.RawMessage) (*tokenContract, error) {
	var args initArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decode init args: %w", err)
	}
	if _, err := domain.ParseAccountID(args.OwnerID.String()); err != nil {
		return nil, fmt.Errorf("owner_id: %w", err)
	}
	if args.Metadata.Spec == "" || args.Metadata.Name == "" || args.Metadata.Symbol == "" {
		return nil, errors.New("metadata requires spec, name and symbol")
	}
	return &tokenContract{
		owner:    args.OwnerID,
		metadata: args.Metadata,
		tokens:   make(map[string]*Token),
	}, nil
}

// clone returns a deep copy so a failed call can be discarded without
// touching committed state.
func (t *tokenContract) clone() *tokenContract {
	c := &tokenContract{
		owner:    t.owner,
		metadata: t.metadata,
		tokens:   make(map[string]*Token, len(t.tokens)),
		order:    append([]string(nil), t.order...),
	}
	for id, tok := range t.tokens {
		cp := *tok
		c.tokens[id] = &cp
	}
	return c
}

func (t *tokenContract) call(predecessor domain.AccountID, method string, args json.RawMessage, deposit domain.Amount) (json.RawMessage, error) {
	switch method {
	case MethodMint:
		return nil, t.mint(predecessor, args)
	case MethodTransfer:
		return nil, t.transfer(predecessor, args, deposit)
	default:
		return t.view(method, args)
	}
}

func (t *tokenContract) view(method string, args json.RawMessage) (json.RawMessage, error) {
	switch method {
	case MethodMetadata:
		return json.Marshal(t.metadata)
	case MethodToken:
		var a tokenArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
		tok, ok := t.tokens[a.TokenID]
		if !ok {
			return json.RawMessage("null"), nil
		}
		return json.Marshal(tok)
	case MethodTokensOwner:
		var a tokensForOwnerArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
		out := []Token{}
		for _, id := range t.order {
			if tok := t.tokens[id]; tok.OwnerID == a.AccountID {
				out = append(out, *tok)
			}
		}
		return json.Marshal(out)
	default:
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownMethod, method)
	}
}

func (t *tokenContract) mint(predecessor domain.AccountID, raw json.RawMessage) error {
	if predecessor != t.owner {
		return errNotContractOwner
	}
	var args mintArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return fmt.Errorf("decode mint args: %w", err)
	}
	if args.TokenID == "" {
		return errors.New("token_id is required")
	}
	if _, ok := t.tokens[args.TokenID]; ok {
		return errTokenExists
	}
	t.tokens[args.TokenID] = &Token{TokenID: args.TokenID, OwnerID: args.ReceiverID, Metadata: args.Metadata}
	t.order = append(t.order, args.TokenID)
	return nil
}

func (t *tokenContract) transfer(predecessor domain.AccountID, raw json.RawMessage, deposit domain.Amount) error {
	if deposit.Cmp(ledger.OneYocto) != 0 {
		return errRequiresOneYocto
	}
	var args transferArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return fmt.Errorf("decode transfer args: %w", err)
	}
	tok, ok := t.tokens[args.TokenID]
	if !ok {
		return errTokenNotFound
	}
	if tok.OwnerID != predecessor {
		return errNotTokenOwner
	}
	if args.ReceiverID == tok.OwnerID {
		return errSelfTransfer
	}
	tok.OwnerID = args.ReceiverID
	return nil
}
