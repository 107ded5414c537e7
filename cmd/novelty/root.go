package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tensorplex-labs/novelty/internal/config"
	"github.com/tensorplex-labs/novelty/internal/docstore"
	"github.com/tensorplex-labs/novelty/internal/embedding"
	"github.com/tensorplex-labs/novelty/internal/metrics"
	"github.com/tensorplex-labs/novelty/internal/pipeline"
	"github.com/tensorplex-labs/novelty/internal/store"
	"github.com/tensorplex-labs/novelty/internal/utils/logger"
	"github.com/tensorplex-labs/novelty/internal/utils/redis"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "novelty",
	Short: "Combinatorial novelty scoring for scientific papers",
	Long: `novelty scores papers by how unusual the combinations of their cited
items are, using the atypicality, commonness, novelty, foster and distance
indicators configured in the indicators file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	rootCmd.AddCommand(runCmd, sampleCmd, ingestCmd)
}

// app holds the collaborators built from the environment.
type app struct {
	cfg     *config.AppConfig
	store   store.Store
	docs    *docstore.SQLStore
	metrics *metrics.Metrics
	closers []func()
}

func newApp(ctx context.Context, withIndicators bool) (*app, *config.IndicatorsConfig, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading environment configuration: %w", err)
	}

	a := &app{cfg: cfg}
	var indicators *config.IndicatorsConfig
	if withIndicators {
		indicators, err = config.LoadIndicators(cfg.IndicatorsFile)
		if err != nil {
			return nil, nil, err
		}
	}

	if a.store, err = a.openStore(); err != nil {
		a.Close()
		return nil, nil, err
	}

	docs, err := docstore.Open(ctx, cfg.DocStoreDriver, cfg.DocStoreDSN)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	a.docs = docs
	a.closers = append(a.closers, func() { _ = docs.Close() })

	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.metrics = metrics.New(reg)
		shutdown := metrics.StartServer(cfg.MetricsPort, reg)
		a.closers = append(a.closers, func() { _ = shutdown(context.Background()) })
	}
	return a, indicators, nil
}

func (a *app) openStore() (store.Store, error) {
	switch strings.ToLower(a.cfg.StoreBackend) {
	case "fs", "":
		return store.NewFSStore(a.cfg.StoreDir)
	case "memory":
		log.Warn().Msg("using in-memory artifact store, artifacts are lost on exit")
		return store.NewMemoryStore(), nil
	case "redis":
		r, err := redis.NewRedis(&a.cfg.RedisEnvConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, r.Close)
		return store.NewRedisStore(r, a.cfg.StorePrefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.StoreBackend)
	}
}

func (a *app) runner(indicators *config.IndicatorsConfig) (*pipeline.Runner, error) {
	deps := pipeline.Deps{Store: a.store, Docs: a.docs, Metrics: a.metrics}
	if indicators.Distance != nil {
		client, err := embedding.NewClient(&a.cfg.EmbeddingEnvConfig)
		if err != nil {
			return nil, err
		}
		deps.Vectors = client
	}
	return pipeline.NewRunner(deps, indicators,
		pipeline.WithWorkers(a.cfg.Workers), pipeline.WithYearWorkers(a.cfg.YearWorkers))
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
