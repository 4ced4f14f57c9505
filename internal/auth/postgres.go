package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	_ CredentialStore = (*PGStore)(nil)
	_ Pinger          = (*PGStore)(nil)
)

const principalColumns = `id, email, display_name, role, organization_id,
	coalesce(array_to_string(permissions, ','), ''), password_hash`

// PGStore implements CredentialStore over a read-only principals table.
//
//	create table principals (
//	  id text primary key,
//	  email text not null unique,
//	  display_name text not null,
//	  role text not null,
//	  organization_id text not null,
//	  permissions text[] not null default '{}',
//	  password_hash text not null
//	);
type PGStore struct {
	db *sql.DB
}

// OpenPG opens a pgx-backed connection pool.
func OpenPG(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// FindByEmail implements CredentialStore.
func (s *PGStore) FindByEmail(ctx context.Context, email string) (Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where lower(email) = $1`, NormalizeEmail(email))
	cred, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("find principal: %w", err)
	}
	return cred, nil
}

// Principals implements CredentialStore.
func (s *PGStore) Principals(ctx context.Context) ([]Principal, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+principalColumns+` from principals order by email asc`)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	var out []Principal
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		out = append(out, cred.Principal)
	}
	return out, rows.Err()
}

// Ping checks database reachability.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (Credential, error) {
	var (
		id, email, name, roleRaw, orgID, perms, hash string
	)
	if err := row.Scan(&id, &email, &name, &roleRaw, &orgID, &perms, &hash); err != nil {
		return Credential{}, err
	}
	role, err := ParseRole(roleRaw)
	if err != nil {
		return Credential{}, err
	}
	var permList []string
	if perms != "" {
		permList = strings.Split(perms, ",")
	}
	return Credential{
		Principal:    NewPrincipal(id, email, name, role, orgID, permList),
		PasswordHash: hash,
	}, nil
}
