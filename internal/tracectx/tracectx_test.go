package tracectx

import (
	"context"
	"testing"
)

func TestWithAndFrom(t *testing.T) {
	ctx := With(context.Background(), "abc123")
	if got := From(ctx); got != "abc123" {
		t.Errorf("From() = %q, want abc123", got)
	}
}

func TestFrom_absent(t *testing.T) {
	if got := From(context.Background()); got != "" {
		t.Errorf("From() on bare context = %q, want empty", got)
	}
}

func TestNewID(t *testing.T) {
	id := NewID()
	if len(id) != 22 {
		t.Errorf("NewID() length = %d, want 22: %s", len(id), id)
	}
	if NewID() == id {
		t.Error("ids should be unique")
	}
}
