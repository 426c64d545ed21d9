package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/config"
	"github.com/faisalantu/tradebridge-systems/libs/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	mock        bool
	users       int
	investments int
	txPerUser   int
	seed        uint64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the TradeBridge database with demo logins and mock data",
		Long: `Creates the demo and admin logins and, with --mock, a set of generated
users with investments and transaction history.

Only runs when env is dev or test.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("TB_CONFIG"), "config file path")
	flags.BoolVar(&opts.mock, "mock", false, "also insert generated users, investments and transactions")
	flags.IntVar(&opts.users, "users", 20, "number of mock users")
	flags.IntVar(&opts.investments, "investments", 15, "number of mock investments")
	flags.IntVar(&opts.txPerUser, "transactions", 10, "transactions per mock user")
	flags.Uint64Var(&opts.seed, "rand-seed", 1, "random seed for mock data")
	return cmd
}

func run(ctx context.Context, opts options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	v, err := config.NewViper(opts.configPath)
	if err != nil {
		return err
	}
	env := v.GetString("env")
	if env != "dev" && env != "test" {
		return fmt.Errorf("refusing to seed: env must be dev or test (got %q)", env)
	}

	logger := logging.NewLogger(v.GetString("log_level"), "seed", env)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, config.Postgres(v).DSN())
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	s := &seeder{pool: pool, logger: logger, params: defaultArgon2}
	if err := s.seedAccounts(ctx); err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}
	logger.Info("accounts seeded", "count", len(fixedAccounts))

	if opts.mock {
		gen := newMockGenerator(opts.seed, time.Now().UTC())
		n, err := s.seedMock(ctx, gen, opts.users, opts.investments, opts.txPerUser)
		if err != nil {
			return fmt.Errorf("seed mock data: %w", err)
		}
		logger.Info("mock data seeded", "users", n)
	}

	fmt.Println("\nDemo credentials:")
	for _, a := range fixedAccounts {
		fmt.Printf("  %-6s %s / %s\n", a.Role, a.Email, a.Password)
	}
	return nil
}

func (o options) validate() error {
	switch {
	case o.users < 0 || o.investments < 0 || o.txPerUser < 0:
		return fmt.Errorf("counts must not be negative")
	case o.investments > 0 && o.users == 0:
		return fmt.Errorf("investments need at least one mock user")
	}
	return nil
}
