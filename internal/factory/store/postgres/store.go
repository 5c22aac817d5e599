// Package postgres persists factory state in Postgres. Every method runs on
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

	"microbonds/internal/factory/models"
	"microbonds/pkg/domain"
	"microbonds/pkg/platform/sentinel"
	txcontext "microbonds/pkg/platform/tx"
)

// LockKey serializes factory transactions across replicas.
const LockKey int64 = 0x6d62_0001

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore implements the factory store.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AppendVersion(ctx context.Context, payload []byte) (uint64, error) {
	var idx int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO token_versions (idx, payload)
		SELECT COALESCE(MAX(idx) + 1, 0), $1 FROM token_versions
		RETURNING idx
	`, payload).Scan(&idx)
	if err != nil {
		return 0, translate(err, "insert token version")
	}
	return uint64(idx), nil
}

func (s *PostgresStore) FindVersion(ctx context.Context, index uint64) (*models.TokenVersion, error) {
	if index > math.MaxInt64 {
		return nil, fmt.Errorf("token version %d: %w", index, sentinel.ErrNotFound)
	}
	version := &models.TokenVersion{Index: index}
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT payload FROM token_versions WHERE idx = $1`, int64(index),
	).Scan(&version.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token version %d: %w", index, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select token version: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context) ([]uint64, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `SELECT idx FROM token_versions ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("query token versions: %w", err)
	}
	defer rows.Close()
	out := []uint64{}
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("scan token version: %w", err)
		}
		out = append(out, uint64(idx))
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddMunicipality(ctx context.Context, municipalityID string) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO municipalities (municipality_id) VALUES ($1)`, municipalityID)
	return translate(err, "insert municipality")
}

func (s *PostgresStore) HasMunicipality(ctx context.Context, municipalityID string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM municipalities WHERE municipality_id = $1)`, municipalityID)
}

func (s *PostgresStore) ListMunicipalities(ctx context.Context, page domain.Page) ([]string, error) {
	offset, limit := window(page)
	return s.strings(ctx, `
		SELECT municipality_id FROM municipalities
		ORDER BY seq OFFSET $1 LIMIT $2
	`, offset, limit)
}

func (s *PostgresStore) AddProject(ctx context.Context, municipalityID, projectID string) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO projects (municipality_id, project_id) VALUES ($1, $2)`, municipalityID, projectID)
	return translate(err, "insert project")
}

func (s *PostgresStore) HasProject(ctx context.Context, municipalityID, projectID string) (bool, error) {
	return s.exists(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE municipality_id = $1 AND project_id = $2)`,
		municipalityID, projectID)
}

func (s *PostgresStore) ListProjects(ctx context.Context, municipalityID string, page domain.Page) ([]string, error) {
	offset, limit := window(page)
	return s.strings(ctx, `
		SELECT project_id FROM projects
		WHERE municipality_id = $1
		ORDER BY seq OFFSET $2 LIMIT $3
	`, municipalityID, offset, limit)
}

func (s *PostgresStore) AddToken(ctx context.Context, municipalityID, projectID string, token models.TokenReference) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO project_tokens (municipality_id, project_id, token_account_id)
		VALUES ($1, $2, $3)
	`, municipalityID, projectID, token.AccountID.String())
	return translate(err, "insert project token")
}

func (s *PostgresStore) ListTokens(ctx context.Context, municipalityID, projectID string, page domain.Page) ([]models.TokenReference, error) {
	offset, limit := window(page)
	ids, err := s.strings(ctx, `
		SELECT token_account_id FROM project_tokens
		WHERE municipality_id = $1 AND project_id = $2
		ORDER BY seq OFFSET $3 LIMIT $4
	`, municipalityID, projectID, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.TokenReference, len(ids))
	for i, id := range ids {
		out[i] = models.TokenReference{AccountID: domain.AccountID(id)}
	}
	return out, nil
}

func (s *PostgresStore) SavePending(ctx context.Context, p *models.PendingDeployment) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pending_deployments (
			correlation_id, municipality_id, project_id, token_version, token_account_id,
			caller, attached, memo, status, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		p.CorrelationID.String(),
		p.MunicipalityID,
		p.ProjectID,
		int64(p.TokenVersion),
		p.TokenAccountID.String(),
		p.Caller.String(),
		p.Attached,
		nullString(p.Memo),
		string(p.Status),
		p.Reason,
		p.CreatedAt,
	)
	return translate(err, "insert pending deployment")
}

func (s *PostgresStore) FindPending(ctx context.Context, id domain.CorrelationID) (*models.PendingDeployment, error) {
	var (
		p       models.PendingDeployment
		cid     uuid.UUID
		version int64
		token   string
		caller  string
		memo    sql.NullString
		status  string
		resolve sql.NullTime
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		SELECT correlation_id, municipality_id, project_id, token_version, token_account_id,
		       caller, attached, memo, status, reason, created_at, resolved_at
		FROM pending_deployments
		WHERE correlation_id = $1
	`, id.String()).Scan(
		&cid, &p.MunicipalityID, &p.ProjectID, &version, &token,
		&caller, &p.Attached, &memo, &status, &p.Reason, &p.CreatedAt, &resolve,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deployment %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select pending deployment: %w", err)
	}
	p.CorrelationID = domain.CorrelationID(cid)
	p.TokenVersion = uint64(version)
	p.TokenAccountID = domain.AccountID(token)
	p.Caller = domain.AccountID(caller)
	p.Status = models.DeploymentStatus(status)
	if memo.Valid {
		p.Memo = &memo.String
	}
	if resolve.Valid {
		p.ResolvedAt = &resolve.Time
	}
	return &p, nil
}

func (s *PostgresStore) ResolvePending(ctx context.Context, id domain.CorrelationID, status models.DeploymentStatus, reason string, at time.Time) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE pending_deployments
		SET status = $2, reason = $3, resolved_at = $4
		WHERE correlation_id = $1 AND status = 'pending'
	`, id.String(), string(status), reason, at)
	if err != nil {
		return fmt.Errorf("resolve pending deployment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve pending deployment: %w", err)
	}
	if n == 0 {
		if _, err := s.FindPending(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("deployment %s: %w", id, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists query: %w", err)
	}
	return ok, nil
}

func (s *PostgresStore) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func window(page domain.Page) (int64, int64) {
	return clamp(page.Offset()), clamp(page.Size())
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

// translate maps constraint violations onto sentinel errors.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", op, sentinel.ErrAlreadyUsed)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
