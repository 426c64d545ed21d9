package config

import (
	"fmt"
	"os"
	"time"

	base "github.com/faisalantu/tradebridge-systems/libs/config"
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type RateLimitConfig struct {
	LoginLimit int
	Window     time.Duration
}

type Config struct {
	App             base.AppConfig
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Argon2          Argon2Params
	DB              base.PostgresConfig
	Redis           base.RedisConfig
	Kafka           base.KafkaConfig
	RateLimit       RateLimitConfig
}

func Load() (*Config, error) {
	v, err := base.NewViper(os.Getenv("TB_CONFIG"))
	if err != nil {
		return nil, err
	}
	v.SetDefault("service_name", "auth")
	v.SetDefault("jwt.issuer", "tradebridge-auth")
	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.refresh_ttl", "720h")
	v.SetDefault("argon2.memory", 64*1024)
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 2)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
	v.SetDefault("rate_limit.login_limit", 10)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("redis.prefix", "tb:auth:rl:")

	var app base.AppConfig
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg := &Config{
		App:             app,
		JWTSecret:       v.GetString("jwt.secret"),
		JWTIssuer:       v.GetString("jwt.issuer"),
		AccessTokenTTL:  v.GetDuration("jwt.access_ttl"),
		RefreshTokenTTL: v.GetDuration("jwt.refresh_ttl"),
		Argon2: Argon2Params{
			Memory:      v.GetUint32("argon2.memory"),
			Iterations:  v.GetUint32("argon2.iterations"),
			Parallelism: uint8(v.GetUint("argon2.parallelism")),
			SaltLength:  v.GetUint32("argon2.salt_length"),
			KeyLength:   v.GetUint32("argon2.key_length"),
		},
		DB:    base.Postgres(v),
		Redis: base.Redis(v),
		Kafka: base.Kafka(v),
		RateLimit: RateLimitConfig{
			LoginLimit: v.GetInt("rate_limit.login_limit"),
			Window:     v.GetDuration("rate_limit.window"),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("TB_JWT_SECRET must be set")
	}
	if cfg.RateLimit.LoginLimit <= 0 || cfg.RateLimit.Window <= 0 {
		return nil, fmt.Errorf("login rate limit must be positive")
	}

	return cfg, nil
}
