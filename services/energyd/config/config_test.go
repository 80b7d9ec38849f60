package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "energyd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "auth:\n  hmac_secret: s3cret\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8088" || cfg.Params != "energy.toml" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ShutdownTimeout.Duration != 5*time.Second || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected timeouts %+v", cfg)
	}
}

func TestLoadParsesFile(t *testing.T) {
	cfg, err := Load(writeFile(t, `listen: 127.0.0.1:9000
params: /etc/energy/energy.toml
read_timeout: 3s
auth:
  hmac_secret: s3cret
  issuer: nhb
  clock_skew: 30s
rate_limits:
  lock:
    rate_per_second: 2
    burst: 4
logging:
  format: console
  level: debug
telemetry:
  endpoint: otel:4318
  traces: true
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReadTimeout.Duration != 3*time.Second || cfg.Auth.ClockSkew.Duration != 30*time.Second {
		t.Fatalf("durations not parsed: %+v", cfg)
	}
	if cfg.RateLimits["lock"].Burst != 4 || !cfg.Telemetry.Traces || cfg.Logging.Level != "debug" {
		t.Fatalf("sections not parsed: %+v", cfg)
	}
}

func TestLoadSecretFromEnv(t *testing.T) {
	t.Setenv("CUSTOM_SECRET", "from-env")
	cfg, err := Load(writeFile(t, "auth:\n  hmac_secret_env: CUSTOM_SECRET\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.HMACSecret != "from-env" {
		t.Fatalf("secret not resolved from env")
	}
}

func TestLoadRejects(t *testing.T) {
	t.Setenv(DefaultSecretEnv, "")
	cases := map[string]string{
		"no secret":     "listen: :1\n",
		"unknown field": "auth:\n  hmac_secret: x\nbogus: 1\n",
		"bad duration":  "auth:\n  hmac_secret: x\nread_timeout: soon\n",
		"bad group":     "auth:\n  hmac_secret: x\nrate_limits:\n  swap:\n    rate_per_second: 1\n    burst: 1\n",
		"zero burst":    "auth:\n  hmac_secret: x\nrate_limits:\n  lock:\n    rate_per_second: 1\n",
		"log format":    "auth:\n  hmac_secret: x\nlogging:\n  format: xml\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, contents)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
