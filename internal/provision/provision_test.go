package provision

import (
	"context"
	"testing"

	"github.com/atoreson/schemadiff/internal/config"
)

func TestStartRejectsUnsupportedDialect(t *testing.T) {
	_, err := Start(context.Background(), "sqlite", "", config.SideConfig{})
	if err == nil {
		t.Fatal("expected an error for an unsupported dialect")
	}
}

func TestContainerStopOnZeroValueIsNoOp(t *testing.T) {
	var c Container
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("expected nil error stopping an unstarted container, got %v", err)
	}
}
