package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"steadrent/cmd/internal/secret"
	"steadrent/config"
	"steadrent/core"
	"steadrent/crypto"
	"steadrent/storage"
)

func TestResolveGenesisPathPrecedence(t *testing.T) {
	env := map[string]string{genesisPathEnv: " /env/genesis.yaml "}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	if got := resolveGenesisPath("/cli.yaml", "/cfg.yaml", lookup); got != "/cli.yaml" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := resolveGenesisPath("", "/cfg.yaml", lookup); got != "/env/genesis.yaml" {
		t.Fatalf("env should win over config, got %q", got)
	}
	if got := resolveGenesisPath("", "/cfg.yaml", nil); got != "/cfg.yaml" {
		t.Fatalf("config fallback expected, got %q", got)
	}
	if got := resolveGenesisPath(" ", "", nil); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}

func TestResolveJWTSecretPrefersEnvironment(t *testing.T) {
	t.Setenv(jwtSecretEnv, "env-secret-0123456789")
	got := resolveJWTSecret("config-secret-0123456789", secret.NewSource(jwtSecretEnv, "rpc jwt secret"))
	if got != "env-secret-0123456789" {
		t.Fatalf("unexpected secret %q", got)
	}

	t.Setenv(jwtSecretEnv, "")
	got = resolveJWTSecret(" config-secret-0123456789 ", secret.NewSource(jwtSecretEnv, "rpc jwt secret"))
	if got != "config-secret-0123456789" {
		t.Fatalf("config secret expected, got %q", got)
	}
}

func TestServerConfigFromFile(t *testing.T) {
	cfg := config.Default()
	cfg.RPC.JWTIssuer = "stead"
	cfg.Telemetry.Traces = true

	withAuth := serverConfig(cfg, "0123456789abcdef")
	if !withAuth.Auth.Enabled || withAuth.Auth.Issuer != "stead" {
		t.Fatalf("auth not configured: %+v", withAuth.Auth)
	}
	if withAuth.ReadTimeout != 15*time.Second || withAuth.RateLimit.Burst != 60 || !withAuth.Tracing {
		t.Fatalf("unexpected server config: %+v", withAuth)
	}
	if serverConfig(cfg, "").Auth.Enabled {
		t.Fatalf("auth must stay disabled without a secret")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn}
	for raw, want := range cases {
		got, err := parseLevel(raw)
		if err != nil || got != want {
			t.Fatalf("parseLevel(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestApplyGenesisIsIdempotent(t *testing.T) {
	var owner crypto.Identity
	owner[0] = 0x01
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	doc := "balances:\n  - address: " + owner.String() + "\n    amount: 500\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}

	node, err := core.NewNode(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for i := 0; i < 2; i++ {
		if err := applyGenesis(context.Background(), node, path, logger); err != nil {
			t.Fatalf("apply genesis (pass %d): %v", i, err)
		}
	}
	balance, err := node.Balance(owner)
	if err != nil || balance != 500 {
		t.Fatalf("unexpected balance %d, %v", balance, err)
	}
}
