package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/shared"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	email             TEXT PRIMARY KEY,
	account_id        TEXT NOT NULL UNIQUE,
	display_name      TEXT NOT NULL DEFAULT '',
	avatar_url        TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	role              TEXT NOT NULL,
	approved          BOOLEAN NOT NULL DEFAULT FALSE,
	permission_grants JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS account_bootstrap (
	id         SMALLINT PRIMARY KEY CHECK (id = 1),
	email      TEXT NOT NULL,
	claimed_at TIMESTAMPTZ NOT NULL
);`

const accountColumns = `email, account_id, display_name, avatar_url, phone, role, approved, permission_grants, created_at, updated_at`

// PGStore implements Store on PostgreSQL with grants held in a JSONB column.
type PGStore struct {
	pool    *pgxpool.Pool
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewPGStore constructs a PostgreSQL store.
func NewPGStore(pool *pgxpool.Pool, cat *catalog.Catalog) *PGStore {
	return &PGStore{pool: pool, catalog: cat, now: time.Now}
}

// EnsureSchema creates the account tables when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("accounts: ensure schema: %w", err)
	}
	return nil
}

// FindByEmail fetches an account by email.
func (s *PGStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	acct, err := s.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, fmt.Errorf("accounts: find %s: %w", email, err)
	}
	return acct, nil
}

// Insert stores a new account.
func (s *PGStore) Insert(ctx context.Context, account Account) (string, error) {
	grants, err := marshalGrants(account.Grants)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	_, err = s.pool.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		account.Email, account.ID, account.DisplayName, account.AvatarURL, account.Phone,
		string(account.Role), account.Approved, grants, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", shared.ErrDuplicate
		}
		return "", fmt.Errorf("accounts: insert %s: %w", account.Email, err)
	}
	return account.ID, nil
}

// UpdateByEmail applies patch in a single UPDATE statement.
func (s *PGStore) UpdateByEmail(ctx context.Context, email string, patch Patch) (int64, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.AvatarURL != nil {
		add("avatar_url", *patch.AvatarURL)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.Approved != nil {
		add("approved", *patch.Approved)
	}
	if patch.Grants != nil {
		grants, err := marshalGrants(*patch.Grants)
		if err != nil {
			return 0, err
		}
		add("permission_grants", grants)
	}
	add("updated_at", s.now().UTC())
	args = append(args, email)
	query := `UPDATE accounts SET ` + strings.Join(sets, ", ") + ` WHERE email = $` + strconv.Itoa(len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("accounts: update %s: %w", email, err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of stored accounts.
func (s *PGStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("accounts: count: %w", err)
	}
	return n, nil
}

// ClaimBootstrap relies on the single-row primary key; the no-op update makes
// RETURNING yield the existing owner on conflict.
func (s *PGStore) ClaimBootstrap(ctx context.Context, email string) (bool, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `INSERT INTO account_bootstrap (id, email, claimed_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET id = account_bootstrap.id
		RETURNING email`, email, s.now().UTC()).Scan(&owner)
	if err != nil {
		return false, fmt.Errorf("accounts: claim bootstrap: %w", err)
	}
	return owner == email, nil
}

// BootstrapOwner reads the single bootstrap row.
func (s *PGStore) BootstrapOwner(ctx context.Context) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT email FROM account_bootstrap WHERE id = 1`).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("accounts: read bootstrap owner: %w", err)
	}
	return owner, nil
}

// List returns all accounts ordered by email.
func (s *PGStore) List(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acct, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("accounts: list scan: %w", err)
		}
		out = append(out, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	return out, nil
}

func (s *PGStore) scan(row pgx.Row) (Account, error) {
	var (
		doc    accountDocument
		grants []byte
	)
	if err := row.Scan(&doc.Email, &doc.AccountID, &doc.DisplayName, &doc.AvatarURL, &doc.Phone,
		&doc.Role, &doc.Approved, &grants, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Account{}, err
	}
	docs, err := unmarshalGrants(grants)
	if err != nil {
		return Account{}, err
	}
	doc.Grants = docs
	return doc.toDomain(s.catalog), nil
}

// marshalGrants encodes grants for the permission_grants JSONB column.
func marshalGrants(gs Grants) ([]byte, error) {
	return json.Marshal(toGrantDocuments(gs))
}

func unmarshalGrants(raw []byte) ([]grantDocument, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var docs []grantDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("accounts: decode grants: %w", err)
	}
	return docs, nil
}

var _ Store = (*PGStore)(nil)
