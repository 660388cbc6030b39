package orchestrate

import (
	"testing"

	"github.com/atoreson/schemadiff/internal/config"
)

func TestDialExecRejectsUnsupportedDialect(t *testing.T) {
	_, err := dialExec("sqlite", config.SideConfig{})
	if err == nil {
		t.Fatal("expected an error for an unsupported dialect")
	}
}

func TestDialExecOpensRegisteredDriverForEachDialect(t *testing.T) {
	conn := config.SideConfig{Host: "localhost", Port: 5432, Database: "db", Username: "u", Password: "p"}
	for _, dialect := range []string{"postgres", "mysql", "mssql", "oracle", "db2"} {
		db, err := dialExec(dialect, conn)
		if err != nil {
			t.Fatalf("%s: unexpected error opening driver: %v", dialect, err)
		}
		db.Close()
	}
}
