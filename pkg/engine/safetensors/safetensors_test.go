package safetensors

import (
	"context"
	"testing"

	"github.com/localforge/shimmy/pkg/registry"
)

func TestLoadReturnsExplanatoryError(t *testing.T) {
	e := NewEngine()
	_, err := e.Load(context.Background(), registry.ModelSpec{Name: "mistral-7b.safetensors"})
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}
