package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/GoTriage/internal/config"
	"github.com/Skufu/GoTriage/internal/diagnosis"
	"github.com/Skufu/GoTriage/internal/httpapi"
	"github.com/Skufu/GoTriage/internal/media"
	"github.com/Skufu/GoTriage/internal/service"
	"github.com/Skufu/GoTriage/internal/store"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// app holds the wired server and everything that must be closed with it.
type app struct {
	router  *gin.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires the optional backends that are configured and reachable.
// A backend that fails at startup is logged and left out.
func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}
	checks := map[string]httpapi.HealthChecker{}

	var remote store.Repository
	if cfg.DatabaseURL != "" {
		pg, closeDB, err := openPostgres(ctx, cfg)
		if err == nil {
			if err = pg.EnsureSchema(ctx); err != nil {
				closeDB()
			}
		}
		if err != nil {
			log.Warn("database unavailable, records will be kept in the local log", zap.Error(err))
		} else {
			remote = pg
			checks["db"] = pg
			a.closers = append(a.closers, closeDB)
		}
	}
	local := store.NewLocalStore(cfg.LocalRecordsPath())
	records := store.NewChain(remote, local.Repository(), log)
	log.Info("record store ready", zap.Bool("remote", records.HasRemote()), zap.String("local_log", local.Path()))

	stores := []media.Store{}
	if cfg.Storage.Endpoint != "" {
		objects, err := newObjectStore(cfg)
		if err != nil {
			log.Warn("object storage unavailable, media will be kept on disk", zap.Error(err))
		} else {
			stores = append(stores, objects)
			checks["storage"] = pingFunc(objects.Ready)
		}
	}
	stores = append(stores, media.NewDiskStore(cfg.UploadsDir(), cfg.PublicBaseURL))
	mediaChain := media.NewChain(log, cfg.UploadTimeout, stores...)

	adapter, closeAI := newAdapter(ctx, cfg, log)
	a.closers = append(a.closers, closeAI)
	log.Info("diagnosis adapter ready", zap.Bool("simulation", adapter.Simulated()))

	svc := service.NewRecordService(records, mediaChain, adapter, log)
	a.router = httpapi.NewRouter(svc, httpapi.Options{
		StaticDir:            cfg.StaticDir,
		MaxUploadBytes:       cfg.MaxUploadBytes,
		AnalyzeRatePerMinute: cfg.AnalyzeRatePerMinute,
		Checks:               checks,
	}, log)
	return a, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*store.PostgresStore, func(), error) {
	pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}

func newObjectStore(cfg *config.Config) (*media.ObjectStore, error) {
	client, err := media.NewMinioClient(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return media.NewObjectStore(client, cfg.Storage.Bucket, cfg.Storage.PublicURL), nil
}

// newAdapter returns a simulation-mode adapter when no key is set or the
// client cannot be created.
func newAdapter(ctx context.Context, cfg *config.Config, log *zap.Logger) (*diagnosis.Adapter, func()) {
	closeFn := func() {}

	var cache diagnosis.ModelCache = diagnosis.NewMemoryCache(cfg.ModelCacheTTL)
	if cfg.RedisURL != "" {
		client, err := diagnosis.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, caching models in process", zap.Error(err))
		} else {
			cache = diagnosis.NewRedisCache(client, cfg.ModelCacheTTL, log)
			closeFn = func() { _ = client.Close() }
		}
	}

	var gen diagnosis.Generator
	if cfg.GeminiAPIKey != "" {
		client, err := diagnosis.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Error("AI client could not be created, running in simulation mode", zap.Error(err))
		} else {
			gen = client
		}
	} else if cfg.IsProduction() {
		log.Error("GEMINI_API_KEY not set in production, AI runs in simulation mode")
	} else {
		log.Warn("GEMINI_API_KEY not set, AI runs in simulation mode")
	}

	return diagnosis.NewAdapter(gen, diagnosis.OptionsFromConfig(cfg, cache), log), closeFn
}
