package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/assert"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NilError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPISecret, "")
	cfg, err := Load("")
	assert.NilError(t, err)
	assert.Equal(t, cfg.Mode, "simulated")
	assert.Equal(t, cfg.Dispatch.OrderDelay, 200*time.Millisecond)
	assert.Equal(t, cfg.Stream.ReconnectDelay, 3*time.Second)
	assert.Equal(t, cfg.Stream.ListenKeyRenewal, 50*time.Minute)
	assert.Equal(t, cfg.Exchange.RecvWindowMS, int64(5000))
	assert.Assert(t, !cfg.Credentials.Complete())
}

func TestLoad_JournalDefaultsToFile(t *testing.T) {
	t.Setenv(EnvJournalDSN, "")
	cfg, err := Load("")
	assert.NilError(t, err)
	assert.Equal(t, cfg.Journal.Driver, "sqlite")
	assert.Equal(t, cfg.Journal.DSN, DefaultJournalDSN)

	path := writeConfig(t, `
journal:
  driver: postgres
  dsn: postgres://grid@localhost/grid?sslmode=disable
`)
	cfg, err = Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Journal.DSN, "postgres://grid@localhost/grid?sslmode=disable")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
mode: live
exchange:
  rest_url: http://localhost:8080
dispatch:
  order_delay: 350ms
simulation:
  failure_rate: 0.25
rules:
  pepeusdt:
    min_qty: "100"
    price_decimals: 8
    qty_decimals: 0
`)
	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Mode, "live")
	assert.Equal(t, cfg.Exchange.RestURL, "http://localhost:8080")
	assert.Equal(t, cfg.Exchange.WSURL, "wss://stream.binancefuture.com")
	assert.Equal(t, cfg.Dispatch.OrderDelay, 350*time.Millisecond)
	assert.Equal(t, cfg.Simulation.FailureRate, 0.25)

	book, err := cfg.RuleBook()
	assert.NilError(t, err)
	rule := book.Lookup("PEPEUSDT")
	assert.Equal(t, rule.PriceDecimals, int32(8))
	assert.Equal(t, rule.MinQty.String(), "100")
	assert.Equal(t, book.Lookup("BTCUSDT").PriceDecimals, int32(1))
}

func TestLoad_EnvironmentSuppliesSecrets(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvAPISecret, "env-secret")
	t.Setenv(EnvJournalDSN, "file:journal.db")

	cfg, err := Load("")
	assert.NilError(t, err)
	assert.Equal(t, cfg.Credentials.APIKey, "env-key")
	assert.Equal(t, cfg.Credentials.Secret, "env-secret")
	assert.Equal(t, cfg.Journal.DSN, "file:journal.db")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"mode":         "mode: paper\n",
		"ws url":       "exchange:\n  ws_url: http://stream\n",
		"failure rate": "simulation:\n  failure_rate: 1.5\n",
		"renewal":      "stream:\n  listen_key_renewal: 90m\n",
		"driver":       "journal:\n  driver: mysql\n",
		"rule":         "rules:\n  btcusdt:\n    min_qty: abc\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}
