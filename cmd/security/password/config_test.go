package password

import (
	"strings"
	"testing"
)

func TestDefaultConfig_Passes(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Check(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestCheck_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{name: "zero value", edit: func(c *Config) { *c = Config{} }, field: "min_len"},
		{name: "min above max", edit: func(c *Config) { c.Policy.MinLength, c.Policy.MaxLength = 20, 10 }, field: "min_len(20)"},
		{name: "memory too small", edit: func(c *Config) { c.Params.MemoryKiB = 1024 }, field: "memory_kib"},
		{name: "iterations too high", edit: func(c *Config) { c.Params.Iterations = 21 }, field: "iterations"},
		{name: "no lanes", edit: func(c *Config) { c.Params.Parallelism = 0 }, field: "parallelism"},
		{name: "salt too long", edit: func(c *Config) { c.Params.SaltLength = 128 }, field: "salt_len"},
		{name: "negative max", edit: func(c *Config) { c.Policy.MaxLength = -1 }, field: "max_len"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.edit(&cfg)
			err := cfg.Check()
			if err == nil {
				t.Fatalf("expected error for %+v", cfg)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("err=%q does not name %q", err, tc.field)
			}
		})
	}
}
