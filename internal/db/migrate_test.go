package db

import (
	"path/filepath"
	"testing"

	"github.com/owaiken/gateway/internal/models"
)

func TestOpenAndMigrate_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "gateway-test.db")
	conn, err := Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if !IsSQLite(conn) {
		t.Fatalf("expected sqlite dialect, got %q", DialectName(conn))
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}
	if !conn.Migrator().HasTable(&models.Account{}) || !conn.Migrator().HasTable(&models.UsageEvent{}) {
		t.Fatalf("expected tables after migrate")
	}
}

func TestIsPostgresDSN(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@localhost:5432/db":          true,
		"postgresql://u@localhost/db":               true,
		"host=localhost user=u dbname=db port=5432": true,
		"file:/tmp/x.db":                            false,
		"gateway.db":                                false,
	}
	for dsn, want := range cases {
		if got := isPostgresDSN(dsn); got != want {
			t.Fatalf("isPostgresDSN(%q): expected %v, got %v", dsn, want, got)
		}
	}
}

func TestJSONExtractTextExpr(t *testing.T) {
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "expr.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if got := JSONExtractTextExpr(conn, "payload", "model"); got != "json_extract(payload, '$.model')" {
		t.Fatalf("unexpected expr %q", got)
	}
}

func TestOpen_RejectsMalformedPostgresDSN(t *testing.T) {
	if _, err := Open("postgres://gateway@localhost:notaport/gateway"); err == nil {
		t.Fatalf("expected parse error for malformed postgres dsn")
	}
	if _, err := Open("   "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
