package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWithHome_HomeFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, ok := HomeFrom(ctx); ok {
		t.Fatal("expected no home in empty context")
	}
	ctx = WithHome(ctx, "/foo/bar")
	got, ok := HomeFrom(ctx)
	if !ok || got != "/foo/bar" {
		t.Fatalf("HomeFrom: got %q, ok=%v; want /foo/bar, true", got, ok)
	}
}

func TestMustHomeFrom_panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when home missing")
		}
	}()
	MustHomeFrom(context.Background())
}

func TestResolveHome_override(t *testing.T) {
	t.Parallel()
	got, err := ResolveHome("/custom/home")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/custom/home") {
		t.Fatalf("ResolveHome: got %q", got)
	}
}

func TestResolveHome_env(t *testing.T) {
	t.Setenv("BROCK_HOME", "/env/home")
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if got != filepath.Clean("/env/home") {
		t.Fatalf("ResolveHome from env: got %q", got)
	}
}

func TestResolveHome_default(t *testing.T) {
	t.Setenv("BROCK_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir: %v", err)
	}
	got, err := ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	want := filepath.Join(home, ".brock")
	if got != want {
		t.Fatalf("ResolveHome default: got %q, want %q", got, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("BATTLE_API_BASE_URL", "")
	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BattleAPIBaseURL != "http://api:4000" {
		t.Errorf("base url: %q", cfg.BattleAPIBaseURL)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("port: %d", cfg.Port)
	}
	if cfg.StrategiesDir != filepath.Join(home, "strategies") {
		t.Errorf("strategies dir: %q", cfg.StrategiesDir)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	home := t.TempDir()
	yaml := `
battle_api_base_url: http://engine:5000
port: 9999
bot_delay: 500ms
`
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BROCK_PORT", "7777")
	t.Setenv("BATTLE_API_BASE_URL", "")

	cfg, err := Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BattleAPIBaseURL != "http://engine:5000" {
		t.Errorf("base url: %q", cfg.BattleAPIBaseURL)
	}
	// Env overrides file.
	if cfg.Port != 7777 {
		t.Errorf("port: %d", cfg.Port)
	}
	if cfg.BotDelay != 500*time.Millisecond {
		t.Errorf("bot delay: %v", cfg.BotDelay)
	}
}

func TestLoadBadYAML(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(home); err == nil {
		t.Error("Load: want error for bad yaml")
	}
}
