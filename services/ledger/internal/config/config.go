package config

import (
	"fmt"
	"os"

	base "github.com/faisalantu/tradebridge-systems/libs/config"
	"github.com/faisalantu/tradebridge-systems/libs/kafka"
)

type Config struct {
	App   base.AppConfig
	DB    base.PostgresConfig
	Kafka base.KafkaConfig
	// SettledTopic is consumed; balance updates go to BalancesTopic.
	SettledTopic  string
	BalancesTopic string
}

func Load() (*Config, error) {
	v, err := base.NewViper(os.Getenv("TB_CONFIG"))
	if err != nil {
		return nil, err
	}
	v.SetDefault("service_name", "ledger")
	v.SetDefault("http.port", 8083)
	v.SetDefault("kafka.group_id", "ledger-service")
	v.SetDefault("topics.settled", kafka.TopicTransactionsSettled)
	v.SetDefault("topics.balances", kafka.TopicBalancesUpdated)

	var app base.AppConfig
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg := &Config{
		App:           app,
		DB:            base.Postgres(v),
		Kafka:         base.Kafka(v),
		SettledTopic:  v.GetString("topics.settled"),
		BalancesTopic: v.GetString("topics.balances"),
	}

	if !cfg.Kafka.Enabled() {
		return nil, fmt.Errorf("TB_KAFKA_BROKERS must be set")
	}
	if cfg.Kafka.GroupID == "" {
		return nil, fmt.Errorf("TB_KAFKA_GROUP_ID must be set")
	}
	if cfg.Kafka.DLQTopic == "" {
		return nil, fmt.Errorf("TB_KAFKA_DLQ_TOPIC must be set")
	}
	return cfg, nil
}
