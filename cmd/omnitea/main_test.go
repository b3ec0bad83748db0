package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/omnitea/omnitea/internal/config"
)

func TestBuildCompleterRequiresAPIKey(t *testing.T) {
	_, err := buildCompleter(config.Config{}, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
}

func TestBuildCompleterAppliesConfig(t *testing.T) {
	cfg := config.Config{}
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.Model = "gpt-4o-mini"

	client, err := buildCompleter(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("buildCompleter failed: %v", err)
	}
	if client.Model() != "gpt-4o-mini" {
		t.Fatalf("expected configured model, got %q", client.Model())
	}
}

func TestBuildRendererDisabled(t *testing.T) {
	renderer, closer, err := buildRenderer(config.RenderConfig{Enabled: false}, "", zap.NewNop())
	if err != nil {
		t.Fatalf("buildRenderer failed: %v", err)
	}
	if closer != nil {
		t.Fatalf("expected no closer for the disabled renderer")
	}

	_, err = renderer.Render(context.Background(), "$x$")
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestBuildRendererWorkDirOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "render-scratch")
	cfg := config.RenderConfig{
		Enabled:  true,
		WorkDir:  filepath.Join(t.TempDir(), "configured"),
		CacheTTL: "1h",
		Timeout:  "90s",
	}

	renderer, closer, err := buildRenderer(cfg, override, zap.NewNop())
	if err != nil {
		t.Fatalf("buildRenderer failed: %v", err)
	}
	if renderer == nil || closer == nil {
		t.Fatalf("expected a live renderer and closer")
	}
	defer closer()

	if _, err := os.Stat(override); err != nil {
		t.Fatalf("expected the override work dir to exist: %v", err)
	}
}

func TestBuildPageRendererIgnoresKillSwitch(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "pages")
	renderer, err := buildPageRenderer(config.RenderConfig{Enabled: false, CacheTTL: "1h"}, outDir, zap.NewNop())
	if err != nil {
		t.Fatalf("buildPageRenderer failed: %v", err)
	}
	if renderer == nil {
		t.Fatalf("expected a renderer despite render.enabled=false")
	}
	if _, err := os.Stat(outDir); err != nil {
		t.Fatalf("expected the output dir to exist: %v", err)
	}
}

func TestOpenStoreFuncDisabled(t *testing.T) {
	if openStoreFunc(config.StoreConfig{Enabled: false}) != nil {
		t.Fatalf("expected nil opener when the store is disabled")
	}
}

func TestOpenStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "omnitea.db")

	st, err := openStore(config.StoreConfig{Enabled: true, Path: path})
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("expected the store directory to exist: %v", err)
	}
}

func TestDefaultConfigPaths(t *testing.T) {
	paths := defaultConfigPaths()
	if len(paths) == 0 || paths[0] != "." {
		t.Fatalf("expected the working directory first, got %v", paths)
	}
}
