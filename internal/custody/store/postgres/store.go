// Package postgres persists custody state in Postgres. Every method runs on
// the transaction carried by ctx when there is one.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"microbonds/internal/custody/models"
	"microbonds/pkg/domain"
	"microbonds/pkg/platform/sentinel"
	txcontext "microbonds/pkg/platform/tx"
)

// LockKey serializes custody transactions across replicas.
const LockKey int64 = 0x6d62_0002

const uniqueViolation = "23505"

// PostgresStore implements the custody store.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AddToken(ctx context.Context, token models.OwnedToken) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO owner_tokens (owner_id, token_account_id, token_id)
		VALUES ($1, $2, $3)
	`, token.OwnerID, token.TokenAccountID.String(), token.TokenID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert owner token: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert owner token: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasToken(ctx context.Context, token models.OwnedToken) (bool, error) {
	var ok bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM owner_tokens
			WHERE owner_id = $1 AND token_account_id = $2 AND token_id = $3
		)
	`, token.OwnerID, token.TokenAccountID.String(), token.TokenID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("select owner token: %w", err)
	}
	return ok, nil
}

func (s *PostgresStore) RemoveToken(ctx context.Context, token models.OwnedToken) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		DELETE FROM owner_tokens
		WHERE owner_id = $1 AND token_account_id = $2 AND token_id = $3
	`, token.OwnerID, token.TokenAccountID.String(), token.TokenID)
	if err != nil {
		return fmt.Errorf("delete owner token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete owner token: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("token %s for %s: %w", token.Key(), token.OwnerID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListTokens(ctx context.Context, ownerID string, page domain.Page) ([]string, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT token_account_id || $2 || token_id FROM owner_tokens
		WHERE owner_id = $1
		ORDER BY seq OFFSET $3 LIMIT $4
	`, ownerID, models.Delimiter, clamp(page.Offset()), clamp(page.Size()))
	if err != nil {
		return nil, fmt.Errorf("query owner tokens: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan owner token: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindLink(ctx context.Context, userID string) (domain.AccountID, error) {
	var account string
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT account_id FROM account_links WHERE user_id = $1`, userID,
	).Scan(&account)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("link for %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("select account link: %w", err)
	}
	return domain.AccountID(account), nil
}

func (s *PostgresStore) SaveLink(ctx context.Context, userID string, accountID domain.AccountID) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO account_links (user_id, account_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET account_id = EXCLUDED.account_id, updated_at = now()
	`, userID, accountID.String())
	if err != nil {
		return fmt.Errorf("upsert account link: %w", err)
	}
	return nil
}

func (s *PostgresStore) SavePending(ctx context.Context, p *models.PendingTransfer) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pending_transfers (
			correlation_id, owner_id, token_account_id, token_id, receiver_id,
			memo, resolve_memo, status, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		p.CorrelationID.String(),
		p.Token.OwnerID,
		p.Token.TokenAccountID.String(),
		p.Token.TokenID,
		p.ReceiverID.String(),
		nullString(p.TransferMemo),
		nullString(p.ResolveMemo),
		string(p.Status),
		p.Reason,
		p.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert pending transfer: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert pending transfer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindPending(ctx context.Context, id domain.CorrelationID) (*models.PendingTransfer, error) {
	var (
		p            models.PendingTransfer
		cid          uuid.UUID
		tokenAccount string
		receiver     string
		memo         sql.NullString
		resolveMemo  sql.NullString
		status       string
		resolvedAt   sql.NullTime
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT correlation_id, owner_id, token_account_id, token_id, receiver_id,
		       memo, resolve_memo, status, reason, created_at, resolved_at
		FROM pending_transfers
		WHERE correlation_id = $1
	`, id.String()).Scan(
		&cid, &p.Token.OwnerID, &tokenAccount, &p.Token.TokenID, &receiver,
		&memo, &resolveMemo, &status, &p.Reason, &p.CreatedAt, &resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transfer %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select pending transfer: %w", err)
	}
	p.CorrelationID = domain.CorrelationID(cid)
	p.Token.TokenAccountID = domain.AccountID(tokenAccount)
	p.ReceiverID = domain.AccountID(receiver)
	p.Status = models.TransferStatus(status)
	if memo.Valid {
		p.TransferMemo = &memo.String
	}
	if resolveMemo.Valid {
		p.ResolveMemo = &resolveMemo.String
	}
	if resolvedAt.Valid {
		p.ResolvedAt = &resolvedAt.Time
	}
	return &p, nil
}

func (s *PostgresStore) ResolvePending(ctx context.Context, id domain.CorrelationID, status models.TransferStatus, reason string, at time.Time) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE pending_transfers
		SET status = $2, reason = $3, resolved_at = $4
		WHERE correlation_id = $1 AND status = 'pending'
	`, id.String(), string(status), reason, at)
	if err != nil {
		return fmt.Errorf("resolve pending transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve pending transfer: %w", err)
	}
	if n == 0 {
		if _, err := s.FindPending(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("transfer %s: %w", id, sentinel.ErrInvalidState)
	}
	return nil
}

func clamp(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
