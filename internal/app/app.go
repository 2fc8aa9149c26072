package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"SupplyRadar/internal/config"
	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/httpapi"
	"SupplyRadar/internal/infrastructure/embedding"
	"SupplyRadar/internal/infrastructure/llm"
	"SupplyRadar/internal/infrastructure/memory"
	"SupplyRadar/internal/infrastructure/postgres"
	"SupplyRadar/internal/infrastructure/scheduler"
	"SupplyRadar/internal/infrastructure/storage"
	"SupplyRadar/internal/infrastructure/telegram"
	"SupplyRadar/internal/logging"
	"SupplyRadar/internal/ports"
	"SupplyRadar/internal/query"
	"SupplyRadar/internal/rating"
	"SupplyRadar/internal/usecase"
)

// ErrOffline is returned for operations that need the Postgres signal store.
var ErrOffline = errors.New("operation requires a database connection")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	ledger   ports.FeedbackLedger
	signals  *postgres.SignalStore
	closers  []func() error
}

type stores struct {
	coverage   ports.CoverageStore
	signals    ports.SignalStore
	ledger     ports.FeedbackLedger
	repository ports.DecisionRepository
}

// New builds every collaborator named by cfg. Offline configs run on fixture
// data; otherwise coverage and signals come from pgx and the ledger from
// database/sql.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Log.Level, cfg.Log.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	var (
		st  stores
		err error
	)
	if cfg.Database.Offline() {
		st, err = a.openOffline(ctx)
	} else {
		st, err = a.openOnline(ctx)
	}
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.ledger = st.ledger

	narrator, err := a.buildNarrator(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	planner, err := query.NewPlanner(query.DefaultRegistry(), cfg.Correlator.Strategies)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("query strategies: %w", err)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		tg := cfg.Notifications.Telegram
		notifier = telegram.NewNotifier(tg.BaseURL, tg.BotToken, tg.ChatID)
	}

	timeout := cfg.Pipeline.CallTimeout
	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Screener: usecase.NewScreener(st.coverage, cfg.Pipeline.Threshold, timeout,
			baseLogger.With("component", "screener")),
		Correlator: usecase.NewCorrelator(st.signals, planner, usecase.CorrelatorConfig{
			TopK:             cfg.Correlator.TopK,
			MinRelevance:     cfg.Correlator.MinRelevance,
			Concurrency:      cfg.Correlator.Concurrency,
			QueriesPerSecond: cfg.Correlator.QueriesPerSecond,
			Burst:            cfg.Correlator.Burst,
			CallTimeout:      timeout,
		}, baseLogger.With("component", "correlator")),
		Synthesizer: usecase.NewSynthesizer(st.ledger, narrator, rating.Policy{
			FloorCover:      cfg.Pipeline.FloorCover,
			StrongRelevance: cfg.Pipeline.StrongRelevance,
		}, timeout, baseLogger.With("component", "synthesizer")),
		Repository: st.repository,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
	})
	return a, nil
}

func (a *Application) openOffline(ctx context.Context) (stores, error) {
	var fixtures memory.Fixtures
	if a.cfg.Fixtures.Path != "" {
		var err error
		fixtures, err = memory.LoadFixtures(a.cfg.Fixtures.Path)
		if err != nil {
			return stores{}, err
		}
	}

	ledger := memory.NewLedger()
	if a.cfg.Fixtures.LedgerPath != "" {
		var err error
		ledger, err = memory.OpenLedger(a.cfg.Fixtures.LedgerPath)
		if err != nil {
			return stores{}, err
		}
	}
	if err := fixtures.Seed(ctx, ledger); err != nil {
		return stores{}, err
	}

	a.logger.Info("running offline",
		"fixtures", a.cfg.Fixtures.Path,
		"inventory", len(fixtures.Inventory),
		"signals", len(fixtures.Signals))
	return stores{
		coverage: memory.NewCoverageStore(fixtures.Inventory),
		signals:  memory.NewSignalStore(fixtures.Signals),
		ledger:   ledger,
	}, nil
}

func (a *Application) openOnline(ctx context.Context) (stores, error) {
	db := a.cfg.Database

	coveragePool, err := postgres.Connect(ctx, db.DSN)
	if err != nil {
		return stores{}, err
	}
	a.closers = append(a.closers, closePool(coveragePool))

	signalPool := coveragePool
	if db.SignalDSN != db.DSN {
		signalPool, err = postgres.Connect(ctx, db.SignalDSN)
		if err != nil {
			return stores{}, err
		}
		a.closers = append(a.closers, closePool(signalPool))
	}

	ledgerDB, err := storage.Open(ctx, db.LedgerDSN)
	if err != nil {
		return stores{}, err
	}
	a.closers = append(a.closers, ledgerDB.Close)

	emb := a.cfg.Embedding
	a.signals = postgres.NewSignalStore(signalPool, embedding.NewClient(emb.Endpoint, emb.APIKey, emb.Model))

	return stores{
		coverage:   postgres.NewCoverageStore(coveragePool),
		signals:    a.signals,
		ledger:     storage.NewFeedbackLedger(ledgerDB),
		repository: storage.NewDecisionRepository(ledgerDB),
	}, nil
}

// Logger is the configured application logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// buildNarrator returns ChatGPT with Gemini as fallback, whichever are keyed.
func (a *Application) buildNarrator(ctx context.Context) (ports.Narrator, error) {
	var primary, secondary ports.Narrator
	if a.cfg.ChatGPT.APIKey != "" {
		primary = llm.NewChatGPTNarrator(a.cfg.ChatGPT)
	}
	if a.cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiNarrator(ctx, a.cfg.Gemini)
		if err != nil {
			return nil, fmt.Errorf("gemini narrator: %w", err)
		}
		a.closers = append(a.closers, gemini.Close)
		secondary = gemini
	}
	return llm.NewFallbackNarrator(primary, secondary, a.cfg.Pipeline.CallTimeout, a.logger.With("component", "narrator")), nil
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (*usecase.State, error) {
	return a.pipeline.Run(ctx)
}

// Ledger exposes the feedback ledger for the feedback commands.
func (a *Application) Ledger() ports.FeedbackLedger {
	return a.ledger
}

// IngestSignals loads documents into the semantic signal store.
func (a *Application) IngestSignals(ctx context.Context, docs []domain.Evidence) (int, error) {
	if a.signals == nil {
		return 0, ErrOffline
	}
	return a.signals.Ingest(ctx, docs)
}

// Handler returns the operator HTTP API.
func (a *Application) Handler() http.Handler {
	return httpapi.NewServer(a.ledger, a.pipeline, a.logger.With("component", "http"), httpapi.Options{})
}

// Scheduler returns recurring runs driven by the configured interval.
func (a *Application) Scheduler() (*usecase.Scheduler, *scheduler.TickerScheduler) {
	driver := scheduler.NewTickerScheduler(a.cfg.Scheduler.Interval)
	return usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "scheduler")), driver
}

// Config returns the configuration the application was built from.
func (a *Application) Config() config.Config {
	return a.cfg
}

// Close releases connections in reverse order of acquisition.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func closePool(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}
