package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	actionx "github.com/tanpawarit/ops-desk/agent/agents/action"
	auditx "github.com/tanpawarit/ops-desk/agent/agents/audit"
	orchestratorx "github.com/tanpawarit/ops-desk/agent/agents/orchestrator"
	policyx "github.com/tanpawarit/ops-desk/agent/agents/policy"
	recordsx "github.com/tanpawarit/ops-desk/agent/agents/records"
	contractx "github.com/tanpawarit/ops-desk/agent/contract"
	llmx "github.com/tanpawarit/ops-desk/agent/llm"
	metricsx "github.com/tanpawarit/ops-desk/agent/metrics"
	nodex "github.com/tanpawarit/ops-desk/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/ops-desk/agent/state"
	storex "github.com/tanpawarit/ops-desk/agent/store"
	togglex "github.com/tanpawarit/ops-desk/agent/toggle"
	toolx "github.com/tanpawarit/ops-desk/agent/tool"
	configx "github.com/tanpawarit/ops-desk/pkg/config"
	qstashx "github.com/tanpawarit/ops-desk/pkg/qstash"
	"github.com/uptrace/bun"
)

const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
)

// AppConfig holds the OPSDESK_* settings.
type AppConfig struct {
	StoreBackend        string        `split_words:"true" default:"memory"`
	CollaboratorTimeout time.Duration `split_words:"true" default:"5s"`
	SimulateLatency     bool          `split_words:"true" default:"true"`
	RandSeed            uint64        `split_words:"true" default:"0"`
	MetricsAddr         string        `split_words:"true"`
}

type recordBackend interface {
	contractx.RecordStore
	contractx.AuditRecorder
}

type app struct {
	cfg          AppConfig
	orchestrator *orchestratorx.Orchestrator
	toggles      *togglex.Store
	registry     *prometheus.Registry
	closers      []func() error
}

type appOptions struct {
	offline bool
	toggles []string
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close resource failed")
		}
	}
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := configx.New[AppConfig]("OPSDESK")
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	a := &app{cfg: *cfg, registry: prometheus.NewRegistry()}

	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	records, err := a.openRecords(ctx)
	if err != nil {
		return nil, err
	}

	toggles, err := a.openToggles(ctx, opts.toggles)
	if err != nil {
		return nil, err
	}

	classifier, err := a.openClassifier(ctx, opts.offline)
	if err != nil {
		return nil, err
	}

	stages, err := a.buildStages(records, toggles, classifier)
	if err != nil {
		return nil, err
	}

	orchOpts, err := a.runOptions()
	if err != nil {
		return nil, err
	}
	a.orchestrator, err = orchestratorx.New(stages, orchOpts...)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func (a *app) openRecords(ctx context.Context) (recordBackend, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.StoreBackend)) {
	case "", backendMemory:
		return storex.NewMemoryStore(storex.DemoFixtures()), nil
	case backendPostgres:
		db, err := openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return storex.NewPostgresStore(db)
	default:
		return nil, fmt.Errorf("%w: unknown store backend=%q", contractx.ErrValidation, a.cfg.StoreBackend)
	}
}

func openPostgres(ctx context.Context) (*bun.DB, error) {
	pgCfg, err := configx.New[storex.PostgresConfig]("POSTGRES")
	if err != nil {
		return nil, fmt.Errorf("load postgres config: %w", err)
	}
	if !pgCfg.Enabled() {
		return nil, errors.New("POSTGRES_DSN is required for the postgres store backend")
	}
	return storex.OpenPostgres(ctx, *pgCfg)
}

// openToggles seeds the in-process store from TOGGLE_* and the named CLI toggles,
// then layers the Redis hash on top when TOGGLE_REDIS_URL is set.
func (a *app) openToggles(ctx context.Context, named []string) (togglex.Reader, error) {
	tCfg, err := configx.New[togglex.Config]("TOGGLE")
	if err != nil {
		return nil, fmt.Errorf("load toggle config: %w", err)
	}
	a.toggles = togglex.NewStore(tCfg.Toggles())
	if err := a.toggles.ApplyNamed(named); err != nil {
		return nil, err
	}

	if strings.TrimSpace(tCfg.RedisURL) == "" {
		return a.toggles, nil
	}
	client, err := togglex.DialRedis(ctx, tCfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return togglex.NewRedisSource(client, tCfg.RedisKey, a.toggles)
}

func (a *app) openClassifier(ctx context.Context, offline bool) (contractx.Classifier, error) {
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, fmt.Errorf("load llm config: %w", err)
	}
	if offline {
		llmCfg.Backend = llmx.BackendKeyword
	}
	classifier, err := llmx.NewClassifier(ctx, *llmCfg)
	if err != nil {
		return nil, fmt.Errorf("build classifier (use --offline or LLM_BACKEND=keyword without a provider key): %w", err)
	}
	log.Debug().Str("backend", string(llmCfg.Backend)).Msg("classifier ready")
	return classifier, nil
}

func (a *app) buildStages(records recordBackend, toggles togglex.Reader, classifier contractx.Classifier) (nodex.Stages, error) {
	timeout := a.cfg.CollaboratorTimeout

	recordsAgent, err := recordsx.New(records, timeout)
	if err != nil {
		return nodex.Stages{}, err
	}
	policyAgent, err := policyx.New(records, toggles, timeout)
	if err != nil {
		return nodex.Stages{}, err
	}

	catalogOpts := []toolx.Option{}
	if a.cfg.RandSeed != 0 {
		catalogOpts = append(catalogOpts, toolx.WithRand(rand.New(rand.NewPCG(a.cfg.RandSeed, a.cfg.RandSeed))))
	}
	if !a.cfg.SimulateLatency {
		catalogOpts = append(catalogOpts, toolx.WithoutLatency())
	}
	actionAgent, err := actionx.New(classifier, toolx.NewCatalog(catalogOpts...).Executor(), toggles,
		actionx.WithClassifyTimeout(timeout))
	if err != nil {
		return nodex.Stages{}, err
	}

	return nodex.Stages{
		Records: recordsAgent,
		Policy:  policyAgent,
		Action:  actionAgent,
		Audit:   auditx.New(auditx.WithRecorder(records), auditx.WithTimeout(timeout)),
	}, nil
}

func (a *app) runOptions() ([]orchestratorx.Option, error) {
	recorder, err := metricsx.NewRunRecorder(a.registry)
	if err != nil {
		return nil, err
	}
	opts := []orchestratorx.Option{orchestratorx.WithObserver(recorder)}

	upCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH")
	if err != nil {
		return nil, fmt.Errorf("load upstash config: %w", err)
	}
	if upCfg.Enabled() {
		runStore, err := statex.NewUpstashRedisStore(*upCfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestratorx.WithRunStore(runStore))
	}

	qCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, fmt.Errorf("load qstash config: %w", err)
	}
	if qCfg.Enabled() {
		client, err := qstashx.NewClient(*qCfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestratorx.WithObserver(
			orchestratorx.NewAuditPublisher(client, qCfg.Destination, qCfg.Timeout),
		))
	}
	return opts, nil
}

// dialToggleRedis is used by commands that write toggles rather than read them.
func dialToggleRedis(ctx context.Context) (*redis.Client, *togglex.Config, error) {
	tCfg, err := configx.New[togglex.Config]("TOGGLE")
	if err != nil {
		return nil, nil, fmt.Errorf("load toggle config: %w", err)
	}
	if strings.TrimSpace(tCfg.RedisURL) == "" {
		return nil, nil, errors.New("TOGGLE_REDIS_URL is required")
	}
	client, err := togglex.DialRedis(ctx, tCfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return client, tCfg, nil
}
