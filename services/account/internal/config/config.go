package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/faisalantu/tradebridge-systems/libs/bankdetails"
	base "github.com/faisalantu/tradebridge-systems/libs/config"
	"github.com/faisalantu/tradebridge-systems/libs/currency"
	"github.com/spf13/viper"
)

const platformAccountName = "TradeBridge Systems Ltd"

type Config struct {
	App       base.AppConfig
	JWTSecret string
	DB        base.PostgresConfig
	Kafka     base.KafkaConfig
	// PlatformAccounts are the receiving accounts users transfer deposits to,
	// one per currency.
	PlatformAccounts map[currency.Currency]bankdetails.BankDetails
	SearchLimit      int
}

func Load() (*Config, error) {
	v, err := base.NewViper(os.Getenv("TB_CONFIG"))
	if err != nil {
		return nil, err
	}
	v.SetDefault("service_name", "account")
	v.SetDefault("http.port", 8082)
	v.SetDefault("search_limit", 50)
	setPlatformDefaults(v)

	var app base.AppConfig
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg := &Config{
		App:         app,
		JWTSecret:   v.GetString("jwt.secret"),
		DB:          base.Postgres(v),
		Kafka:       base.Kafka(v),
		SearchLimit: v.GetInt("search_limit"),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("TB_JWT_SECRET must be set")
	}

	cfg.PlatformAccounts, err = platformAccounts(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func setPlatformDefaults(v *viper.Viper) {
	for _, c := range currency.All() {
		v.SetDefault(platformKey(c, bankdetails.KeyAccountName), platformAccountName)
	}
	v.SetDefault(platformKey(currency.GBP, bankdetails.KeyAccountNumber), "12345678")
	v.SetDefault(platformKey(currency.GBP, bankdetails.KeySortCode), "12-34-56")
	v.SetDefault(platformKey(currency.AUD, bankdetails.KeyBSB), "062-000")
	v.SetDefault(platformKey(currency.AUD, bankdetails.KeyAccountNumber), "12345678")
	v.SetDefault(platformKey(currency.CAD, bankdetails.KeyInstitutionNumber), "001")
	v.SetDefault(platformKey(currency.CAD, bankdetails.KeyBranchTransitNumber), "12345")
	v.SetDefault(platformKey(currency.CAD, bankdetails.KeyAccountNumber), "1234567")
	v.SetDefault(platformKey(currency.CAD, bankdetails.KeyBIC), "BOFMCAM2")
	v.SetDefault(platformKey(currency.USD, bankdetails.KeyBankAddress), "123 Wall Street, New York, NY 10001")
	v.SetDefault(platformKey(currency.USD, bankdetails.KeyAccountNumber), "12345678901")
	v.SetDefault(platformKey(currency.USD, bankdetails.KeyRoutingNumber), "021000021")
}

// platformKey yields e.g. platform.gbp.sort_code, overridable as
// TB_PLATFORM_GBP_SORT_CODE.
func platformKey(c currency.Currency, field string) string {
	return fmt.Sprintf("platform.%s.%s", strings.ToLower(c.String()), snake(field))
}

// platformAccounts reads each currency's fields key by key and validates the
// result with the same rules applied to user bank details.
func platformAccounts(v *viper.Viper) (map[currency.Currency]bankdetails.BankDetails, error) {
	out := make(map[currency.Currency]bankdetails.BankDetails, len(currency.All()))
	for _, c := range currency.All() {
		get := func(field string) string { return v.GetString(platformKey(c, field)) }
		acc := bankdetails.BankDetails{Currency: c, AccountName: get(bankdetails.KeyAccountName)}
		for _, f := range bankdetails.Fields(c) {
			switch f.Key {
			case bankdetails.KeyAccountNumber:
				acc.AccountNumber = get(f.Key)
			case bankdetails.KeySortCode:
				acc.SortCode = get(f.Key)
			case bankdetails.KeyBSB:
				acc.BSB = get(f.Key)
			case bankdetails.KeyInstitutionNumber:
				acc.InstitutionNumber = get(f.Key)
			case bankdetails.KeyBranchTransitNumber:
				acc.BranchTransitNumber = get(f.Key)
			case bankdetails.KeyBIC:
				acc.BIC = get(f.Key)
			case bankdetails.KeyBankAddress:
				acc.BankAddress = get(f.Key)
			case bankdetails.KeyRoutingNumber:
				acc.RoutingNumber = get(f.Key)
			}
		}
		acc = acc.Normalize()
		if err := bankdetails.Validate(acc); err != nil {
			return nil, fmt.Errorf("platform account %s: %w", c, err)
		}
		out[c] = acc
	}
	return out, nil
}

// snake converts a camelCase field key to snake_case.
func snake(key string) string {
	out := make([]byte, 0, len(key)+4)
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if ch >= 'A' && ch <= 'Z' {
			out = append(out, '_', ch+'a'-'A')
			continue
		}
		out = append(out, ch)
	}
	return string(out)
}
