package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// PostgresConfig is read from the postgres.* keys (TB_POSTGRES_HOST, ...).
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Name,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	if p.MaxConns > 0 {
		u.RawQuery += fmt.Sprintf("&pool_max_conns=%d", p.MaxConns)
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	GroupID  string   `mapstructure:"group_id"`
	DLQTopic string   `mapstructure:"dlq_topic"`
}

// Enabled reports whether at least one broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

func SetSectionDefaults(v *viper.Viper) {
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.name", "tradebridge")
	v.SetDefault("postgres.user", "tradebridge")
	v.SetDefault("postgres.password", "tradebridge")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_conns", 0)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "tb:")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.group_id", "")
	v.SetDefault("kafka.dlq_topic", "tradebridge.dlq")
}

// Postgres reads the postgres section key by key so TB_POSTGRES_* overrides
// apply; UnmarshalKey on a parent key ignores them.
func Postgres(v *viper.Viper) PostgresConfig {
	return PostgresConfig{
		Host:     v.GetString("postgres.host"),
		Port:     v.GetInt("postgres.port"),
		Name:     v.GetString("postgres.name"),
		User:     v.GetString("postgres.user"),
		Password: v.GetString("postgres.password"),
		SSLMode:  v.GetString("postgres.sslmode"),
		MaxConns: v.GetInt32("postgres.max_conns"),
	}
}

func Redis(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
		Prefix:   v.GetString("redis.prefix"),
	}
}

func Kafka(v *viper.Viper) KafkaConfig {
	return KafkaConfig{
		Brokers:  Brokers(v),
		GroupID:  v.GetString("kafka.group_id"),
		DLQTopic: v.GetString("kafka.dlq_topic"),
	}
}

// Brokers splits a comma separated TB_KAFKA_BROKERS value; viper hands env
// lists over as a single string.
func Brokers(v *viper.Viper) []string {
	var out []string
	for _, raw := range v.GetStringSlice("kafka.brokers") {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				out = append(out, b)
			}
		}
	}
	return out
}
