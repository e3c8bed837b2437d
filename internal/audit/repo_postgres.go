package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends audit events to Postgres. Insert-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, account_id, ip_address, provider, call_id, message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.AccountID,
		e.IPAddress,
		e.Provider,
		e.CallID,
		e.Message,
		e.CreatedAt,
	)
	return err
}
