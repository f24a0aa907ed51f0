package migrate

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSplitSQL(t *testing.T) {
	stmts := splitSQL(`
		create table a (id text primary key);
		insert into a values ('x;y');
		create index i on a (id)
	`)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[1] != `insert into a values ('x;y')` {
		t.Fatalf("semicolon inside string literal split the statement: %q", stmts[1])
	}
}

func TestListSQLOrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_add.up.sql", "0001_init.up.sql", "0001_init.down.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	ups, err := listSQL(dir, upSuffix)
	if err != nil {
		t.Fatalf("listSQL: %v", err)
	}
	if !slices.Equal(ups, []string{"0001_init.up.sql", "0002_add.up.sql"}) {
		t.Fatalf("unexpected up files: %v", ups)
	}

	missing, err := listSQL(filepath.Join(dir, "absent"), upSuffix)
	if err != nil || missing != nil {
		t.Fatalf("missing dir must yield no files, got %v %v", missing, err)
	}
}

func TestUpAppliesOnlyPending(t *testing.T) {
	dir := t.TempDir()
	sqlBody := "create table widgets (id text primary key)"
	for _, name := range []string{"0001_init.up.sql", "0002_widgets.up.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sqlBody), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`create table if not exists schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_seeds`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// 0001 is already recorded; only 0002 runs.
	mock.ExpectQuery(`select name from schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(`create table widgets`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`insert into schema_migrations`).
		WithArgs("0002_widgets.up.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := New(db, dir, "")
	if err := r.Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRequiresAppliedMigration(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`create table if not exists schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_seeds`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`create table if not exists schema_seeds`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`select name from schema_migrations order by`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	r := New(db, t.TempDir(), "")
	if err := r.Down(context.Background()); err == nil {
		t.Fatalf("expected error with no applied migrations")
	}
}
