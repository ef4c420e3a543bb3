package main

import (
	"context"
	"net/http"
	"time"

	"conduit/internal/agent"
	"conduit/internal/config"
	"conduit/internal/dispatcher"
	"conduit/internal/llm"
	"conduit/internal/logging"
	"conduit/internal/observability"
	"conduit/internal/outputcheck"
	"conduit/internal/planner"
	"conduit/internal/plugins"
	"conduit/internal/ports"
	"conduit/internal/providers/calc"
	"conduit/internal/providers/dev"
	"conduit/internal/providers/monitor"
	"conduit/internal/providers/remote"
	"conduit/internal/providers/websearch"
	"conduit/internal/session"
	"conduit/internal/sshpool"
	"conduit/internal/toolregistry"
)

// engine holds every wired component for one process.
type engine struct {
	cfg        *config.Config
	log        logging.Logger
	registry   *toolregistry.Registry
	store      *session.Store
	metrics    *observability.Metrics
	dispatcher *dispatcher.Dispatcher
	planner    *planner.Planner
	agent      *agent.Agent
	loader     *plugins.Loader
	pool       *sshpool.Pool
	providers  []ports.Provider
}

// buildEngine assembles the runtime from configuration. The SSH provider
// is only wired when host, user and key are all configured.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	log := logging.NewComponentLogger("engine")

	metrics, err := observability.New()
	if err != nil {
		return nil, err
	}

	registry := toolregistry.New(logging.NewComponentLogger("registry"))
	store := session.NewStore()

	e := &engine{
		cfg:      cfg,
		log:      log,
		registry: registry,
		store:    store,
		metrics:  metrics,
	}

	e.providers = []ports.Provider{
		calc.New(),
		dev.New(dev.Config{Logger: logging.NewComponentLogger("dev")}),
		monitor.New(store, logging.NewComponentLogger("monitor")),
		websearch.New(http.DefaultClient, logging.NewComponentLogger("websearch")),
	}
	if cfg.SSHHost != "" && cfg.SSHUser != "" && cfg.SSHKeyPath != "" {
		e.pool = sshpool.New(sshpool.Options{
			KeyPath:     cfg.SSHKeyPath,
			DialTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
			IdleTTL:     time.Duration(cfg.ConnectionTimeoutSeconds) * time.Second,
			Logger:      logging.NewComponentLogger("sshpool"),
		})
		e.providers = append(e.providers, remote.New(e.pool, remote.Config{
			Host:   cfg.SSHHost,
			User:   cfg.SSHUser,
			Logger: logging.NewComponentLogger("remote"),
		}))
	} else {
		log.Info("ssh not configured, remote tools disabled")
	}

	for _, provider := range e.providers {
		if err := provider.Initialize(ctx); err != nil {
			log.Warn("provider %s failed to initialize: %v", provider.Name(), err)
			continue
		}
		names := registry.RegisterProvider(provider)
		log.Info("provider %s: %d tools", provider.Name(), len(names))
	}

	e.dispatcher = dispatcher.New(registry, outputcheck.New(logging.NewComponentLogger("outputcheck")),
		dispatcher.Options{
			DefaultTimeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
			DefaultMaxRetries: cfg.MaxRetries,
			Logger:            logging.NewComponentLogger("dispatcher"),
			Metrics:           metrics,
			Stats:             store.Stats(),
		})

	e.loader = plugins.NewLoader(registry, logging.NewComponentLogger("plugins"))
	if n := e.loader.DiscoverAll(cfg.PluginDiscoveryPaths); n > 0 {
		log.Info("loaded %d plugins", n)
	}

	e.planner = planner.New(registry, logging.NewComponentLogger("planner"))

	client := llm.NewClient(llm.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.APIBaseURL,
		Model:      cfg.ModelName,
		MaxRetries: cfg.MaxRetries,
		Logger:     logging.NewComponentLogger("llm"),
	})
	e.agent = agent.New(agent.Options{
		Client:     client,
		Dispatcher: e.dispatcher,
		Planner:    e.planner,
		Registry:   registry,
		Store:      store,
		Metrics:    metrics,
		Logger:     logging.NewComponentLogger("agent"),
	})

	log.Info("engine ready: %d tools registered", registry.Size())
	return e, nil
}

// shutdown releases providers and the connection pool.
func (e *engine) shutdown(ctx context.Context) {
	for _, provider := range e.providers {
		if err := provider.Shutdown(ctx); err != nil {
			e.log.Warn("provider %s shutdown: %v", provider.Name(), err)
		}
	}
	if e.pool != nil {
		e.pool.Close()
	}
}
