package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Lectern/internal/config"
	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/cache"
	db "github.com/markdave123-py/Lectern/internal/core/database"
	"github.com/markdave123-py/Lectern/internal/core/generation"
	"github.com/markdave123-py/Lectern/internal/core/ingestion_engine"
	"github.com/markdave123-py/Lectern/internal/core/llm"
	"github.com/markdave123-py/Lectern/internal/core/media"
	objectclient "github.com/markdave123-py/Lectern/internal/core/object-client"
	"github.com/markdave123-py/Lectern/internal/core/progress"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/core/transcription"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/services"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	cfg *config.Config
	log *logger.Logger

	DBClient *db.DatabaseClient
	Ingestor *ingestion_engine.LectureIngestor
	Cache    *cache.ContentCache
	Server   *Server

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient.Close)
	log.Info("database initialized and ready")

	// Object storage only mirrors uploads, so the service runs without it.
	var objects core.ObjectClient
	if s3Client, err := objectclient.NewS3Client(appCtx, cfg, log); err != nil {
		log.Warn("object storage disabled", "error", err)
	} else {
		objects = s3Client
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}
	a.closers = append(a.closers, embedder.Close)

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the llm: %w", err)
	}
	a.closers = append(a.closers, llmProvider.Close)

	p := cfg.Pipeline
	breakers := resilience.NewBreakers(resilience.BreakerSettings{
		Threshold: p.BreakerThreshold,
		Window:    p.BreakerWindow,
		Timeout:   p.BreakerTimeout,
	}, log)

	transcriber, err := a.transcriber(appCtx, breakers)
	if err != nil {
		return nil, err
	}

	tracker, err := a.tracker(appCtx)
	if err != nil {
		return nil, err
	}

	contentCache := cache.NewContentCache(dbClient, log)
	generator := generation.NewGenerator(llmProvider, log)

	ingestor := ingestion_engine.NewLectureIngestor(ingestion_engine.Deps{
		Store:       dbClient,
		Audio:       media.NewFFmpegExtractor(cfg.FFmpeg, cfg.FFprobe, cfg.WorkDir, log),
		Slides:      media.NewDeckExtractor(cfg.DeckReadability, log),
		Transcriber: transcriber,
		Generator:   generator,
		Embedder:    embedder,
		Objects:     objects,
		Cache:       contentCache,
		Breakers:    breakers,
		Tracker:     tracker,
	}, ingestion_engine.NewIngestConfig(p), log)

	a.Ingestor = ingestor
	a.Cache = contentCache
	a.Server = NewServer(cfg, log, Services{
		Users:    services.NewUserService(dbClient, cfg.JWTSecret, cfg.TokenTTL),
		Lectures: services.NewLectureService(dbClient, objects, ingestor, tracker, cfg.UploadDir, log),
		Content:  services.NewContentService(dbClient, generator, contentCache, breakers, services.NewContentConfig(p), log),
		Chat: services.NewChatService(dbClient, embedder, llmProvider, breakers,
			resilience.RetryPolicy{Attempts: p.RetryAttempts, Delay: p.RetryDelay}, log),
	})

	ok = true
	return a, nil
}

// transcriber orders the configured backends by TRANSCRIPTION_MODE. Whisper
// is only available with an API key.
func (a *App) transcriber(ctx context.Context, breakers *resilience.Breakers) (*transcription.Service, error) {
	gemini, err := transcription.NewGeminiBackend(ctx, a.cfg.AIAPIKey, a.cfg.TranscribeModel, a.log)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize gemini transcription: %w", err)
	}
	a.closers = append(a.closers, gemini.Close)

	var whisper core.TranscriptionBackend
	if a.cfg.WhisperAPIKey != "" {
		whisper = transcription.NewWhisperBackend(a.cfg.WhisperAPIKey, a.cfg.WhisperModel, a.cfg.WhisperURL)
	}

	backends, err := transcription.Order(a.cfg.Pipeline.TranscriptionMode, gemini, whisper)
	if err != nil {
		return nil, err
	}
	svc := transcription.NewService(backends, breakers, a.log)
	a.log.Info("transcription backends ready", "mode", a.cfg.Pipeline.TranscriptionMode, "order", svc.BackendNames())
	return svc, nil
}

// tracker uses Redis when REDIS_URL is set so progress survives restarts and
// is shared across instances.
func (a *App) tracker(ctx context.Context) (progress.Tracker, error) {
	ttl := a.cfg.Pipeline.ProgressTTL
	if a.cfg.RedisURL == "" {
		return progress.NewMemoryTracker(ttl), nil
	}
	rt, err := progress.NewRedisTracker(ctx, a.cfg.RedisURL, ttl, a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rt.Close)
	a.log.Info("redis progress tracker ready")
	return rt, nil
}

// Run serves HTTP, runs the ingestion workers and the cache sweeper until ctx
// is cancelled or one of them fails, then shuts the server down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.Ingestor.Start(gctx, a.cfg.NumWorkers)
	g.Go(func() error {
		a.Ingestor.Wait()
		return nil
	})

	g.Go(func() error {
		return a.Cache.Run(gctx, a.cfg.Pipeline.CacheSweepInterval)
	})

	g.Go(func() error {
		return a.Server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases every client opened by NewApp, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
