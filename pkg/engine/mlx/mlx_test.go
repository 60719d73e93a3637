package mlx

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/localforge/shimmy/pkg/registry"
)

func TestLoadReportsHardwareMismatch(t *testing.T) {
	e := NewEngine()
	_, err := e.Load(context.Background(), registry.ModelSpec{Name: "phi-3.mlx"})
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if runtime.GOOS != "darwin" || runtime.GOARCH != "arm64" {
		if !strings.Contains(err.Error(), "Apple Silicon") {
			t.Errorf("expected a hardware-mismatch message, got %q", err.Error())
		}
	}
}
