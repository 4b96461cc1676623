package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"formu/internal/http/handlers"
	httpapi "formu/internal/http/httpapi"
	"formu/internal/infra"
	"formu/internal/infra/credentials"
	"formu/internal/infra/geoip"
	"formu/internal/providers/coze"
	"formu/internal/providers/sora"
	"formu/internal/providers/tripo"
	"formu/internal/quota"
	"formu/internal/relay"
	"formu/internal/storage"
	"formu/internal/tasks"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)

	// Seed provider credentials from the environment, then overlay whatever
	// admins stored in the database.
	creds := credentials.NewStore(runner)
	creds.Publish(credentials.Snapshot{
		Coze: credentials.CozeCredentials{
			Token:       cfg.CozeToken,
			BaseURL:     cfg.CozeBaseURL,
			AnalysisBot: cfg.CozeAnalysisBot,
			StyleBots:   cfg.CozeStyleBots,
		},
		Tripo: credentials.KeyCredentials{APIKey: cfg.TripoAPIKey, BaseURL: cfg.TripoBaseURL},
		Sora:  credentials.KeyCredentials{APIKey: cfg.SoraAPIKey, BaseURL: cfg.SoraBaseURL},
	})
	if _, err := creds.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to load stored credentials, using environment values")
	}

	files, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize upload storage")
	}

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, login countries will be empty")
	}

	app := &handlers.App{
		Logger:        logger,
		SQL:           runner,
		Creds:         creds,
		Relay:         &dynamicRelay{creds: creds, logger: &logger},
		Tripo:         &dynamicTask{build: tripoBuilder(creds, &logger)},
		Sora:          &dynamicTask{build: soraBuilder(creds, &logger)},
		Ledger:        quota.NewLedger(runner),
		Files:         files,
		Geo:           geo,
		JWTSecret:     cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		UploadBaseURL: cfg.UploadBaseURL,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		UploadDir:       files.BasePath(),
		UploadBaseURL:   cfg.UploadBaseURL,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// dynamicRelay rebuilds the chat pipeline from the current credential
// snapshot on every run, so admin credential updates apply to the next
// request without a restart.
type dynamicRelay struct {
	creds  *credentials.Store
	logger *infra.Logger
}

func (d *dynamicRelay) Run(ctx context.Context, in relay.Input, emit func(relay.Event) error) (relay.Outcome, error) {
	snap := d.creds.Current()
	client, err := coze.NewClient(coze.Options{
		BaseURL: snap.Coze.BaseURL,
		Token:   snap.Coze.Token,
		Logger:  d.logger,
	})
	if err != nil {
		return relay.Outcome{}, err
	}
	r := relay.New(relay.NewChatter(client), relay.Bots{
		Analysis: snap.Coze.AnalysisBot,
		Styles:   snap.Coze.StyleBots,
	}, d.logger)
	return r.Run(ctx, in, emit)
}

// dynamicTask defers orchestrator construction to request time for the same
// reason: each call sees the latest published credentials.
type dynamicTask struct {
	build func() (*tasks.Orchestrator, error)
}

func (d *dynamicTask) Submit(ctx context.Context, in tasks.SubmitInput) (tasks.Handle, error) {
	orch, err := d.build()
	if err != nil {
		return tasks.Handle{}, err
	}
	return orch.Submit(ctx, in)
}

func (d *dynamicTask) Status(ctx context.Context, taskID string) (tasks.Status, error) {
	orch, err := d.build()
	if err != nil {
		return tasks.Status{}, err
	}
	return orch.Status(ctx, taskID)
}

func tripoBuilder(creds *credentials.Store, logger *infra.Logger) func() (*tasks.Orchestrator, error) {
	return func() (*tasks.Orchestrator, error) {
		snap := creds.Current()
		client, err := tripo.NewClient(tripo.Options{
			BaseURL: snap.Tripo.BaseURL,
			APIKey:  snap.Tripo.APIKey,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return tasks.NewTripo(client, logger), nil
	}
}

func soraBuilder(creds *credentials.Store, logger *infra.Logger) func() (*tasks.Orchestrator, error) {
	return func() (*tasks.Orchestrator, error) {
		snap := creds.Current()
		client, err := sora.NewClient(sora.Options{
			BaseURL: snap.Sora.BaseURL,
			APIKey:  snap.Sora.APIKey,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return tasks.NewSora(client, logger), nil
	}
}
