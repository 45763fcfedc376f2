package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trendlab.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/trendlab/data"
  sqlite_path: "/tmp/trendlab/trendlab.db"
logging:
  level: "info"
  format: "json"
backtest:
  instruments: ["ES", "CL"]
  start_date: "2020-01-01"
  end_date: "2023-12-31"
`)

	os.Unsetenv("DATA_DIR")
	os.Unsetenv("SQLITE_PATH")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/trendlab/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/trendlab/data")
	}

	bt := cfg.Backtest
	if bt.InitialCapital != 100000 {
		t.Errorf("InitialCapital = %v, want 100000", bt.InitialCapital)
	}
	if bt.ATRPeriod != 20 || bt.MAPeriod != 50 || bt.MASlopePeriod != 10 {
		t.Errorf("indicator periods = %d/%d/%d, want 20/50/10", bt.ATRPeriod, bt.MAPeriod, bt.MASlopePeriod)
	}
	if bt.BreakoutPeriod != 20 || bt.ExitPeriod != 10 {
		t.Errorf("breakout/exit periods = %d/%d, want 20/10", bt.BreakoutPeriod, bt.ExitPeriod)
	}
	if bt.StopATRMultiple != 2.0 {
		t.Errorf("StopATRMultiple = %v, want 2.0", bt.StopATRMultiple)
	}
	if bt.CooldownDays != 3 {
		t.Errorf("CooldownDays = %d, want 3", bt.CooldownDays)
	}
	if bt.RiskPerTrade != 0.005 {
		t.Errorf("RiskPerTrade = %v, want 0.005", bt.RiskPerTrade)
	}
	if bt.CommissionPerContract != 2.50 {
		t.Errorf("CommissionPerContract = %v, want 2.50", bt.CommissionPerContract)
	}
	if bt.EntryTiming != EntryNextOpen {
		t.Errorf("EntryTiming = %q, want %q", bt.EntryTiming, EntryNextOpen)
	}
	if bt.DrawdownWarningPct != 0.10 || bt.DrawdownHaltPct != 0.15 || bt.DailyLossLimitPct != 0.02 {
		t.Errorf("guardrails = %v/%v/%v, want 0.10/0.15/0.02",
			bt.DrawdownWarningPct, bt.DrawdownHaltPct, bt.DailyLossLimitPct)
	}

	if err := bt.Validate(); err != nil {
		t.Errorf("Validate() on defaulted config returned error: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "/original/data"
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
`)

	os.Setenv("DATA_DIR", "/env/data")
	os.Setenv("ALPACA_API_KEY", "env-key")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")
	defer os.Unsetenv("DATA_DIR")
	defer os.Unsetenv("ALPACA_API_KEY")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
}

func validBacktestConfig() BacktestConfig {
	c := BacktestConfig{
		Instruments: []string{"ES"},
		StartDate:   "2020-01-01",
		EndDate:     "2021-01-01",
	}
	c.ApplyDefaults()
	return c
}

func TestBacktestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*BacktestConfig)
		wantField string
	}{
		{"valid", func(c *BacktestConfig) {}, ""},
		{"no instruments", func(c *BacktestConfig) { c.Instruments = nil }, "instruments"},
		{"bad start date", func(c *BacktestConfig) { c.StartDate = "01/02/2020" }, "start_date"},
		{"end before start", func(c *BacktestConfig) { c.EndDate = "2019-01-01" }, "end_date"},
		{"zero capital", func(c *BacktestConfig) { c.InitialCapital = -5 }, "initial_capital"},
		{"zero atr period", func(c *BacktestConfig) { c.ATRPeriod = -1 }, "atr_period"},
		{"negative stop multiple", func(c *BacktestConfig) { c.StopATRMultiple = -1 }, "stop_atr_multiple"},
		{"negative cooldown", func(c *BacktestConfig) { c.CooldownDays = -1 }, "cooldown_days"},
		{"risk fraction too big", func(c *BacktestConfig) { c.RiskPerTrade = 1.5 }, "risk_per_trade"},
		{"negative contract cap", func(c *BacktestConfig) { c.MaxContractsPerInstrument = -1 }, "max_contracts_per_instrument"},
		{"negative gross cap", func(c *BacktestConfig) { c.MaxGrossExposure = -0.5 }, "max_gross_exposure"},
		{"group without symbols", func(c *BacktestConfig) {
			c.CorrelatedGroups = []CorrelatedGroup{{Name: "equity-index", MaxExposure: 0.5}}
		}, "correlated_groups"},
		{"negative slippage", func(c *BacktestConfig) { c.SlippageTicks = -1 }, "slippage_ticks"},
		{"unknown entry timing", func(c *BacktestConfig) { c.EntryTiming = "same_close" }, "entry_timing"},
		{"warning above halt", func(c *BacktestConfig) {
			c.DrawdownWarningPct = 0.20
			c.DrawdownHaltPct = 0.15
		}, "drawdown_halt_pct"},
		{"loss limit above one", func(c *BacktestConfig) { c.DailyLossLimitPct = 1.5 }, "daily_loss_limit_pct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validBacktestConfig()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Validate() field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestWarmup(t *testing.T) {
	c := validBacktestConfig()
	// MA 50 + slope 10 - 1 = 59 dominates ATR 21, breakout 20, exit 10.
	if got := c.Warmup(); got != 59 {
		t.Errorf("Warmup() = %d, want 59", got)
	}

	c.MAPeriod = 5
	c.MASlopePeriod = 3
	// ATR period + 1 = 21 now dominates.
	if got := c.Warmup(); got != 21 {
		t.Errorf("Warmup() = %d, want 21", got)
	}
}
