package source

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/computegraph/backend"
	"github.com/gogpu/computegraph/shader"
)

func TestRegisteredFormats(t *testing.T) {
	for _, tt := range []struct {
		format  string
		dialect shader.Dialect
	}{
		{"wgsl", shader.WGSL},
		{"hlsl", shader.HLSL},
	} {
		c, err := backend.New(tt.format)
		if err != nil {
			t.Fatalf("backend.New(%q): %v", tt.format, err)
		}
		if c.Format() != tt.format || c.Dialect() != tt.dialect {
			t.Errorf("%s: got format %q dialect %q", tt.format, c.Format(), c.Dialect().Name())
		}
	}
}

func TestCompileExpandsSource(t *testing.T) {
	req := &backend.Request{
		FriendlyName: "G/CSMain",
		EntryPoint:   "CSMain",
		Source:       "void CSMain() {}\n",
		Definitions:  []shader.Define{{Name: "USE_X", Value: "1"}},
	}
	out, err := NewHLSL().Compile(context.Background(), req)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	code := string(out.Code)
	if !strings.Contains(code, "#define USE_X 1") || !strings.Contains(code, "void CSMain()") {
		t.Errorf("code =\n%s", code)
	}
}

func TestCompileMissingEntryPoint(t *testing.T) {
	req := &backend.Request{FriendlyName: "G/main", EntryPoint: "main", Source: "fn other() {}\n"}
	out, err := NewWGSL().Compile(context.Background(), req)
	if !errors.Is(err, ErrEntryPointNotFound) {
		t.Fatalf("err = %v, want ErrEntryPointNotFound", err)
	}
	if out == nil || len(out.Diagnostics) != 1 {
		t.Errorf("diagnostics = %v", out)
	}
}

func TestCompileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewWGSL().Compile(ctx, &backend.Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
