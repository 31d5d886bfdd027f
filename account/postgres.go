package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	tokenward "github.com/averano/tokenward"
	"github.com/averano/tokenward/account/migrations"
)

// PostgresProvider implements tokenward.AccountProvider on a Postgres
// accounts table. BumpSecurityEpoch is a single atomic UPDATE ... RETURNING,
// so concurrent bumps never lose an increment.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider opens a connection pool for dsn, runs the embedded
// migrations, and returns a ready provider.
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	p := &PostgresProvider{db: db}
	if err := p.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return p, nil
}

// NewPostgresProviderFromDB wraps an existing pool without running
// migrations.
func NewPostgresProviderFromDB(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// RunMigrations applies the embedded goose migrations.
func (p *PostgresProvider) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	return goose.UpContext(ctx, p.db, ".")
}

// Close releases the connection pool.
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}

// CreateAccount inserts a new account and returns its record.
func (p *PostgresProvider) CreateAccount(ctx context.Context, identifier, passwordDigest string) (tokenward.AccountRecord, error) {
	query := `INSERT INTO accounts (identifier, password_digest)
	          VALUES ($1, $2)
	          RETURNING id, security_epoch`

	rec := tokenward.AccountRecord{
		Identifier:     identifier,
		PasswordDigest: passwordDigest,
		Status:         tokenward.AccountActive,
	}
	err := p.db.QueryRowContext(ctx, query, identifier, passwordDigest).
		Scan(&rec.ID, &rec.SecurityEpoch)
	if err != nil {
		return tokenward.AccountRecord{}, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

// GetAccount implements tokenward.AccountProvider.
func (p *PostgresProvider) GetAccount(ctx context.Context, id string) (tokenward.AccountRecord, error) {
	query := `SELECT id, identifier, password_digest, status, security_epoch
	          FROM accounts
	          WHERE id = $1`

	return p.scanAccount(p.db.QueryRowContext(ctx, query, id))
}

// GetAccountByIdentifier implements tokenward.AccountProvider.
func (p *PostgresProvider) GetAccountByIdentifier(ctx context.Context, identifier string) (tokenward.AccountRecord, error) {
	query := `SELECT id, identifier, password_digest, status, security_epoch
	          FROM accounts
	          WHERE identifier = $1`

	return p.scanAccount(p.db.QueryRowContext(ctx, query, identifier))
}

// BumpSecurityEpoch implements tokenward.AccountProvider.
func (p *PostgresProvider) BumpSecurityEpoch(ctx context.Context, id string) (uint64, error) {
	query := `UPDATE accounts
	          SET security_epoch = security_epoch + 1, updated_at = now()
	          WHERE id = $1
	          RETURNING security_epoch`

	var epoch uint64
	err := p.db.QueryRowContext(ctx, query, id).Scan(&epoch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, tokenward.ErrAccountNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return epoch, nil
}

// SetStatus updates an account's lifecycle status.
func (p *PostgresProvider) SetStatus(ctx context.Context, id string, status tokenward.AccountStatus) error {
	query := `UPDATE accounts
	          SET status = $2, updated_at = now()
	          WHERE id = $1`

	res, err := p.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tokenward.ErrAccountNotFound
	}

	return nil
}

// DeleteAccount removes the row entirely. Tokens for the account fail
// verification immediately because lookups no longer find it.
func (p *PostgresProvider) DeleteAccount(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tokenward.ErrAccountNotFound
	}

	return nil
}

func (p *PostgresProvider) scanAccount(row *sql.Row) (tokenward.AccountRecord, error) {
	var rec tokenward.AccountRecord
	err := row.Scan(&rec.ID, &rec.Identifier, &rec.PasswordDigest, &rec.Status, &rec.SecurityEpoch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tokenward.AccountRecord{}, tokenward.ErrAccountNotFound
		}
		return tokenward.AccountRecord{}, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}
