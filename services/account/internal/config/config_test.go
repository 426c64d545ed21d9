package config

import (
	"testing"

	"github.com/faisalantu/tradebridge-systems/libs/currency"
)

func TestLoadPlatformDefaults(t *testing.T) {
	t.Setenv("TB_CONFIG", t.TempDir()+"/missing.yaml")
	t.Setenv("TB_JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.PlatformAccounts) != len(currency.All()) {
		t.Fatalf("expected an account per currency, got %d", len(cfg.PlatformAccounts))
	}
	gbp := cfg.PlatformAccounts[currency.GBP]
	if gbp.SortCode != "12-34-56" || gbp.AccountNumber != "12345678" {
		t.Fatalf("unexpected GBP account: %+v", gbp)
	}
	if gbp.BSB != "" || gbp.RoutingNumber != "" {
		t.Fatalf("GBP account carries foreign identifiers: %+v", gbp)
	}
	if cad := cfg.PlatformAccounts[currency.CAD]; cad.BIC != "BOFMCAM2" {
		t.Fatalf("unexpected CAD BIC %q", cad.BIC)
	}
}

func TestLoadPlatformOverride(t *testing.T) {
	t.Setenv("TB_CONFIG", t.TempDir()+"/missing.yaml")
	t.Setenv("TB_JWT_SECRET", "secret")
	t.Setenv("TB_PLATFORM_USD_ROUTING_NUMBER", "026009593")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.PlatformAccounts[currency.USD].RoutingNumber; got != "026009593" {
		t.Fatalf("expected override, got %q", got)
	}
}

func TestLoadRejectsMalformedPlatformAccount(t *testing.T) {
	t.Setenv("TB_CONFIG", t.TempDir()+"/missing.yaml")
	t.Setenv("TB_JWT_SECRET", "secret")
	t.Setenv("TB_PLATFORM_AUD_BSB", "12")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed BSB")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("TB_CONFIG", t.TempDir()+"/missing.yaml")
	t.Setenv("TB_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error without jwt secret")
	}
}

func TestSnake(t *testing.T) {
	if got := snake("branchTransitNumber"); got != "branch_transit_number" {
		t.Fatalf("got %q", got)
	}
}
