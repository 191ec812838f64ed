package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"triagekit/internal/api"
	"triagekit/internal/config"
	"triagekit/internal/delivery"
	"triagekit/internal/dispatch"
	"triagekit/internal/llm"
	"triagekit/internal/observability"
	"triagekit/internal/orchestrate"
	"triagekit/internal/store"
	"triagekit/internal/taxonomy"
	"triagekit/internal/triage"
)

type App struct {
	Config     config.Config
	Service    *triage.Service
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
	Observer   *observability.DeliveryObserver
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	var st *store.Store
	if cfg.Database.DSN != "" {
		st, err = store.Open(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, st.DB()); err != nil {
			return nil, err
		}
	}

	var dispatcher *dispatch.Dispatcher
	if cfg.Redis.URL != "" {
		dispatcher, err = dispatch.New(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
	}

	logObserver := observability.NewDeliveryObserver(log.Default())
	deliverer := delivery.New(providers, delivery.Options{
		MaxRetries: cfg.Delivery.MaxRetries,
		BaseDelay:  cfg.Delivery.BaseDelay.Std(),
		Observer:   observability.Multi(logObserver, st.Observer()),
	})
	runner := orchestrate.New(deliverer, orchestrate.Options{
		MaxAttempts: cfg.Orchestrator.MaxAttempts,
		RetryDelay:  cfg.Orchestrator.RetryDelay.Std(),
	})

	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		return nil, err
	}
	service := triage.NewService(runner, tax, dispatcher, st, log.Default())

	return &App{
		Config:     cfg,
		Service:    service,
		Store:      st,
		Dispatcher: dispatcher,
		Observer:   logObserver,
	}, nil
}

func buildProviders(cfg config.Config) ([]llm.Provider, error) {
	providers := make([]llm.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		switch p.Kind {
		case "openai":
			adapter, err := llm.NewOpenAI(llm.OpenAIConfig{
				Name:    p.Name,
				APIKey:  p.APIKey(),
				BaseURL: p.BaseURL,
				Model:   p.Model,
				Timeout: p.Timeout.Std(),
			})
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", p.Name, err)
			}
			providers = append(providers, adapter)
		case "ollama":
			providers = append(providers, llm.NewOllama(llm.OllamaConfig{
				Name:    p.Name,
				BaseURL: p.BaseURL,
				Model:   p.Model,
				Timeout: p.Timeout.Std(),
			}))
		case "static":
			providers = append(providers, llm.NewStatic())
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
		}
	}
	if len(providers) == 0 && cfg.Dev.Mode {
		providers = append(providers, llm.NewStatic())
	}
	return providers, nil
}

func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.Dispatcher != nil {
		_ = a.Dispatcher.Close()
	}
	return err
}

func (a *App) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	handler := api.NewHandler(a.Service)
	handler.RegisterRoutes(mux)
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.Store != nil {
			if err := a.Store.Ping(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		if a.Dispatcher != nil {
			if err := a.Dispatcher.Ping(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	return srv.ListenAndServe()
}
