package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	xerrors "Attest-Resolver/internal/errors"
)

const sampleYAML = `
server:
  address: ":9090"
storage:
  driver: mysql
  mysql:
    dsn: "user:pass@tcp(127.0.0.1:3306)/resolver"
events:
  driver: redis
  redis:
    list: resolver:events
    channel: resolver.events
auth:
  mode: trust_all
tokens:
  - address: "0x00000000000000000000000000000000000000aa"
    name: Reward
    symbol: RWD
    decimals: 7
    mints:
      - to: "0x00000000000000000000000000000000000000a1"
        amount: "10000000000"
resolvers:
  - kind: Reward
    name: rewards
    address: "0x00000000000000000000000000000000000000b1"
    admin: "0x00000000000000000000000000000000000000a1"
    token: "0x00000000000000000000000000000000000000aa"
    amount: "100000000"
    beneficiary: "0x00000000000000000000000000000000000000c1"
    enforce_protocol_caller: true
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "resolver.yaml", sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Fatalf("unexpected server address %q", cfg.Server.Address)
	}
	if cfg.Storage.Driver != "mysql" || cfg.Storage.MySQL.MaxOpenConns != 10 {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Events.Redis.Address != "127.0.0.1:6379" || cfg.Events.Redis.List != "resolver:events" {
		t.Fatalf("unexpected events config %+v", cfg.Events.Redis)
	}
	if len(cfg.Resolvers) != 1 || cfg.Resolvers[0].Kind != KindReward || !cfg.Resolvers[0].EnforceProtocolCaller {
		t.Fatalf("unexpected resolvers %+v", cfg.Resolvers)
	}
	if got := cfg.Tokens[0].Mints[0].Amount; got != "10000000000" {
		t.Fatalf("unexpected mint amount %q", got)
	}
}

func TestLoadJSONDefaults(t *testing.T) {
	path := writeFile(t, "resolver.json", `{"logging":{"audit":{"enabled":true,"path":"audit/a.log"}}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8080" || cfg.Storage.Driver != "memory" || cfg.Events.Driver != "none" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Auth.Mode != "signature" {
		t.Fatalf("unexpected auth mode %q", cfg.Auth.Mode)
	}
	want := filepath.Join(filepath.Dir(path), "audit", "a.log")
	if cfg.Logging.Audit.Path != want {
		t.Fatalf("audit path = %q, want %q", cfg.Logging.Audit.Path, want)
	}
}

func TestValidateRejects(t *testing.T) {
	const addr = "0x00000000000000000000000000000000000000a1"
	valid := func() ResolverConfig {
		return ResolverConfig{Kind: KindFee, Name: "fees", Address: addr, Admin: addr, Token: addr, Amount: "5", Beneficiary: addr}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		code   xerrors.Code
	}{
		{"unknown storage", func(c *Config) { c.Storage.Driver = "etcd" }, xerrors.CodeInvalidArgument},
		{"mysql without dsn", func(c *Config) { c.Storage.Driver = "mysql" }, xerrors.CodeConfigMissing},
		{"rabbitmq without url", func(c *Config) { c.Events.Driver = "rabbitmq" }, xerrors.CodeConfigMissing},
		{"unknown auth", func(c *Config) { c.Auth.Mode = "none" }, xerrors.CodeInvalidArgument},
		{"missing admin", func(c *Config) { c.Resolvers[0].Admin = "" }, xerrors.CodeConfigMissing},
		{"bad token", func(c *Config) { c.Resolvers[0].Token = "0xzz" }, xerrors.CodeInvalidArgument},
		{"bad amount", func(c *Config) { c.Resolvers[0].Amount = "1e9" }, xerrors.CodeInvalidArgument},
		{"unknown kind", func(c *Config) { c.Resolvers[0].Kind = "authority" }, xerrors.CodeInvalidArgument},
		{"duplicate name", func(c *Config) { c.Resolvers = append(c.Resolvers, valid()) }, xerrors.CodeInvalidArgument},
		{"bad mint", func(c *Config) {
			c.Tokens = []TokenConfig{{Address: addr, Mints: []MintConfig{{To: addr, Amount: "x"}}}}
		}, xerrors.CodeInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Resolvers: []ResolverConfig{valid()}}
			cfg.applyDefaults(t.TempDir())
			tc.mutate(cfg)
			err := cfg.Validate()
			if xerrors.CodeOf(err) != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, xerrors.ErrConfigMissing) {
		t.Fatalf("expected config missing, got %v", err)
	}
	if _, err := Load(""); !errors.Is(err, xerrors.ErrConfigMissing) {
		t.Fatalf("expected config missing for empty path, got %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/resolver.json")
	if got := ResolvePath("cli.yaml"); got != "cli.yaml" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := ResolvePath(""); got != "/etc/resolver.json" {
		t.Fatalf("env should be used, got %q", got)
	}
	t.Setenv(EnvConfigPath, "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Fatalf("default expected, got %q", got)
	}
}
