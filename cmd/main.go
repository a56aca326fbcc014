package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"defect-inspector/config"
	telegram "defect-inspector/internal/api"
	"defect-inspector/internal/api/httpapi"
	"defect-inspector/internal/container"
	"defect-inspector/internal/domain/port"
	"defect-inspector/internal/infrastructure/codec"
	"defect-inspector/internal/infrastructure/describer"
	"defect-inspector/internal/infrastructure/storage"
	"defect-inspector/internal/infrastructure/vision"
	"defect-inspector/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.TelegramToken == "" && cfg.HTTPAddr == "" {
		log.Fatal("TELEGRAM_TOKEN or HTTP_ADDR is required")
	}
	if cfg.GinRelease {
		gin.SetMode(gin.ReleaseMode)
	}

	// Эталоны и задания живут в Redis, если он задан, иначе в памяти процесса.
	var (
		templates port.TemplateStore = storage.NewMemoryTemplateStore()
		jobs      port.JobStore
	)
	if cfg.RedisAddr != "" {
		pool := storage.NewRedisPool(cfg.RedisAddr, cfg.RedisMaxConnections)
		defer pool.Close()
		templates = storage.NewRedisTemplateStore(pool, cfg.ResultTTL)
		if cfg.HTTPAddr != "" {
			jobs = storage.NewRedisJobStore(pool, cfg.ResultTTL)
		}
		log.WithField("addr", cfg.RedisAddr).Info("using redis storage")
	} else if cfg.HTTPAddr != "" {
		jobs = storage.NewMemoryJobStore()
	}

	var gate *vision.QualityGate
	if cfg.QualityGate {
		gate = vision.DefaultQualityGate()
	}

	appContainer := container.New(container.Deps{
		Users:     storage.NewMemoryUserRepository(),
		Templates: templates,
		Jobs:      jobs,
		Detector:  vision.NewGoCVDetector(log, gate),
		Describer: describer.NewTextDescriber(),
		Codec:     codec.New(),
		Params:    cfg.Params,
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		Log:       log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if cfg.HTTPAddr != "" {
		appContainer.Dispatcher.Run()
		defer appContainer.Dispatcher.Stop()

		api, err := httpapi.NewServer(appContainer)
		if err != nil {
			log.Fatalf("Failed to create http api: %v", err)
		}
		server := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router()}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.WithField("addr", cfg.HTTPAddr).Info("HTTP API is running...")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server failed")
				stop()
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("Bot is running...")
			if err := bot.Run(ctx); err != nil {
				log.WithError(err).Error("bot stopped")
			}
		}()
	}

	wg.Wait()
	log.Info("shutting down")
}
