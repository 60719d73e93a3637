//go:build !hf

package huggingface

import (
	"context"
	"testing"

	"github.com/localforge/shimmy/pkg/registry"
)

func TestLoadRequiresHFTag(t *testing.T) {
	if Compiled {
		t.Fatal("Compiled should be false in an untagged build")
	}
	e := NewEngine("")
	_, err := e.Load(context.Background(), registry.ModelSpec{Name: "meta-llama/Llama-3-8b"})
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
}
