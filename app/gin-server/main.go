package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/memovox/memovox/config"
	"github.com/memovox/memovox/internal/api/handlers"
	"github.com/memovox/memovox/internal/api/middleware"
	"github.com/memovox/memovox/internal/api/routes"
	"github.com/memovox/memovox/internal/logger"
	"github.com/memovox/memovox/internal/notify"
	"github.com/memovox/memovox/internal/providers/stt"
	"github.com/memovox/memovox/internal/services"
	"github.com/memovox/memovox/internal/transcoder"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration error")
	}
	log.WithField("app_env", cfg.AppEnv).Info("starting memovox relay")

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.WithError(err).Fatal("cannot create upload directory")
	}

	// Long-lived service handles, built once and injected.
	ffmpeg := transcoder.NewFFmpeg(cfg.FFmpegPath, cfg.TranscodeGrace, log)
	whisper := stt.NewWhisperClient(cfg.TranscribeURL, cfg.OpenAIAPIKey, cfg.TranscribeModel, cfg.TranscribeLanguage, log)

	var notifier services.Notifier
	if cfg.NotifyEnabled {
		graph := notify.NewGraphChannel(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, cfg.Sender, cfg.Recipient, log)
		smtp := notify.NewSMTPChannel(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSecure, cfg.SMTPUser, cfg.SMTPPass, cfg.Recipient, log)

		verifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := smtp.Verify(verifyCtx); err != nil {
			log.WithError(err).Warn("SMTP fallback verification failed")
		} else {
			log.Info("SMTP fallback ready")
		}
		cancel()

		notifier = notify.NewDispatcher(graph, smtp, log)
	} else {
		log.Info("notification disabled, transcripts are returned to the caller only")
	}

	svc := services.NewTranscribeService(ffmpeg, whisper, notifier, log)

	if cfg.AppEnv != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.NoStore())

	routes.RegisterRoutes(r, routes.Deps{
		Transcribe: handlers.NewTranscribeHandler(svc, cfg.UploadDir, log),
		AuthDebug:  handlers.NewAuthDebugHandler(cfg.AppEnv),
		Gate:       middleware.AccessGate(cfg.AppEnv, cfg.RequiredGroupID, cfg.DevUserName, cfg.DevUserEmail, log),
		LocalDev:   cfg.AppEnv == "local",
		PublicDir:  cfg.PublicDir,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("forced shutdown")
	}

	// Let in-flight notification/cleanup tasks finish.
	svc.Drain()
	log.Info("bye")
}
