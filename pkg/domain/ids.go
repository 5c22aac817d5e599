package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "microbonds/pkg/domain-errors"
)

// AccountID is a ledger account identity such as "factory.testnet" or
// "city-bond.factory.testnet".
type AccountID string

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
	maxKeyLen       = 64
)

// Dot-separated parts of lowercase alphanumerics, each part allowing single
// '-' or '_' separators between runs.
var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[\-_])*[a-z\d]+\.)*([a-z\d]+[\-_])*[a-z\d]+$`)

// ParseAccountID validates s against the ledger's account-id rules.
func ParseAccountID(s string) (AccountID, error) {
	if len(s) < minAccountIDLen || len(s) > maxAccountIDLen {
		return "", dErrors.New(dErrors.CodeBadRequest, "account id must be between 2 and 64 characters")
	}
	if !accountIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeBadRequest, "account id is invalid")
	}
	return AccountID(s), nil
}

// ValidateID checks a free-form registry key such as a municipality, project,
// user or token id. Any characters are allowed; the key must be non-empty,
// at most 64 bytes and carry no surrounding whitespace.
func ValidateID(field, v string) error {
	switch {
	case v == "":
		return dErrors.New(dErrors.CodeBadRequest, field+" is required")
	case len(v) > maxKeyLen:
		return dErrors.New(dErrors.CodeBadRequest, field+" must be at most 64 characters")
	case strings.TrimSpace(v) != v:
		return dErrors.New(dErrors.CodeBadRequest, field+" must not have surrounding whitespace")
	}
	return nil
}

func (a AccountID) String() string { return string(a) }

func (a AccountID) IsZero() bool { return a == "" }

// SubAccount returns "<name>.<a>" after validating the result.
func (a AccountID) SubAccount(name string) (AccountID, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, ".") {
		return "", dErrors.New(dErrors.CodeBadRequest, "subaccount name is invalid")
	}
	id, err := ParseAccountID(name + "." + string(a))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "subaccount id is invalid")
	}
	return id, nil
}

// IsSubAccountOf reports whether a is a direct child of parent.
func (a AccountID) IsSubAccountOf(parent AccountID) bool {
	prefix, ok := strings.CutSuffix(string(a), "."+string(parent))
	return ok && prefix != "" && !strings.Contains(prefix, ".")
}

// CorrelationID keys a pending asynchronous operation.
type CorrelationID uuid.UUID

func NewCorrelationID() CorrelationID { return CorrelationID(uuid.New()) }

// ParseCorrelationID parses a non-nil UUID.
func ParseCorrelationID(s string) (CorrelationID, error) {
	if s == "" {
		return CorrelationID{}, dErrors.New(dErrors.CodeBadRequest, "correlation id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return CorrelationID{}, dErrors.New(dErrors.CodeBadRequest, "correlation id is invalid")
	}
	if u == uuid.Nil {
		return CorrelationID{}, dErrors.New(dErrors.CodeBadRequest, "correlation id is invalid")
	}
	return CorrelationID(u), nil
}

func (c CorrelationID) String() string { return uuid.UUID(c).String() }

func (c CorrelationID) IsNil() bool { return uuid.UUID(c) == uuid.Nil }

func (c CorrelationID) MarshalText() ([]byte, error) {
	return uuid.UUID(c).MarshalText()
}

func (c *CorrelationID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*c = CorrelationID(u)
	return nil
}
