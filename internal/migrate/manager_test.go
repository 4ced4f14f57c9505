package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optibid.com/internal/auth"
)

func TestSplitStatements(t *testing.T) {
	got := splitStatements("create table a (x text default 'a;b');\n\n;insert into a values ('c');  ")
	require.Len(t, got, 2)
	assert.Equal(t, "create table a (x text default 'a;b')", got[0])
	assert.Equal(t, "insert into a values ('c')", got[1])
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	m := NewManager(nil)
	ups, err := m.collect(".up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_principals.up.sql"}, ups)
}

func TestUpAppliesPendingOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"sql/0001_a.up.sql":   {Data: []byte("create table a (id int);")},
		"sql/0001_a.down.sql": {Data: []byte("drop table a;")},
		"sql/0002_b.up.sql":   {Data: []byte("create table b (id int); create index b_idx on b (id);")},
	}
	m := NewManager(db, WithFS(fsys))

	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("create table b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create index b_idx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into schema_migrations").
		WithArgs("0002_b.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b.up.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownRollsBackLast(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"sql/0001_a.up.sql":   {Data: []byte("create table a (id int);")},
		"sql/0001_a.down.sql": {Data: []byte("drop table a;")},
	}
	m := NewManager(db, WithFS(fsys), WithMigrationsTable("custom_migrations"))

	mock.ExpectExec("create table if not exists custom_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from custom_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("drop table a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from custom_migrations where name = \\$1").
		WithArgs("0001_a.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	last, err := m.Down(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0001_a.up.sql", last)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedPrincipalsWritesHashesOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	creds, err := auth.BuildCredentials([]auth.Seed{{
		ID:       "usr-ops",
		Email:    "Ops@OptiBid.com",
		Name:     "Ops",
		Role:     "admin",
		Password: "plaintext-never-stored",
	}}, 4)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("insert into principals").
		WithArgs("usr-ops", "ops@optibid.com", "Ops", "admin", "", sqlmock.AnyArg(), creds[0].PasswordHash).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	n, err := NewManager(db).SeedPrincipals(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotEqual(t, "plaintext-never-stored", creds[0].PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}
