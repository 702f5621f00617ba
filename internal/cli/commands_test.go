package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nedwiyt/internal/config"
)

func testConfig(t *testing.T, backendName string) *config.Config {
	t.Helper()
	return &config.Config{
		Backend:          backendName,
		SQLiteDBPath:     filepath.Join(t.TempDir(), "nedwiyt.db"),
		JWTSecret:        "0123456789abcdef0123",
		SessionTTL:       time.Hour,
		SessionCacheSize: 8,
		Timezone:         "UTC",
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(Options{
		LoadConfig: func() (*config.Config, error) { return cfg, nil },
		Now:        func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) },
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	out, err := run(t, testConfig(t, "sqlite"), "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "version 1 (dirty=false)") {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, testConfig(t, "memory"), "migrate")
	if err != nil || !strings.Contains(out, "Nothing to migrate") {
		t.Errorf("memory migrate = %q, %v", out, err)
	}
}

func TestUserAdd(t *testing.T) {
	cfg := testConfig(t, "sqlite")

	out, err := run(t, cfg, "user", "add", "--email", "Owner@Example.com", "--password", "correct-horse")
	if err != nil {
		t.Fatalf("user add: %v", err)
	}
	if !strings.Contains(out, "Created user owner@example.com") {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, cfg, "user", "add", "--email", "owner@example.com", "--password", "another-one")
	if err != nil || !strings.Contains(out, "already exists") {
		t.Errorf("second add = %q, %v", out, err)
	}

	tests := []struct {
		name    string
		cfg     *config.Config
		args    []string
		wantErr string
	}{
		{"short password", cfg, []string{"user", "add", "--email", "new@example.com", "--password", "short"}, "at least 8"},
		{"memory backend", testConfig(t, "memory"), []string{"user", "add", "--email", "a@b.c", "--password", "long-enough"}, "persistent"},
		{"missing flag", cfg, []string{"user", "add", "--email", "a@b.c"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.cfg, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCategoriesList(t *testing.T) {
	out, err := run(t, testConfig(t, "memory"), "categories", "list")
	if err != nil {
		t.Fatalf("categories list: %v", err)
	}
	for _, want := range []string{"NAME", "Vegetables", "Fruit", "Herbs"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}

	out, err = run(t, testConfig(t, "sqlite"), "categories", "list")
	if err != nil || !strings.Contains(out, "No categories found.") {
		t.Errorf("empty sqlite list = %q, %v", out, err)
	}
}

func TestStats(t *testing.T) {
	out, err := run(t, testConfig(t, "memory"), "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Stock items", "Total revenue", "0.00", "Inventory value"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}
