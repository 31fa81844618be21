package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/faeln1/go-telegram-tracker/internal/app/controllers"
	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/app/services"
	"github.com/faeln1/go-telegram-tracker/internal/config"
	"github.com/faeln1/go-telegram-tracker/internal/platform/database"
	httpPlatform "github.com/faeln1/go-telegram-tracker/internal/platform/http"
	"github.com/faeln1/go-telegram-tracker/internal/platform/telegram"
	"github.com/faeln1/go-telegram-tracker/pkg/eventlog"
	"github.com/faeln1/go-telegram-tracker/pkg/logger"
	storagepkg "github.com/faeln1/go-telegram-tracker/pkg/storage"
	minioStorage "github.com/faeln1/go-telegram-tracker/pkg/storage/minio"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.MustLoad()
	appLog := logger.New(cfg.LogLevel)

	appLog.Infof("configuration: driver=%s dsn=%s", cfg.DBDriver, config.RedactDSN(cfg.DatabaseDSN))

	var objectStorage storagepkg.Service
	if cfg.Storage.Enabled() {
		store, err := minioStorage.New(context.Background(), minioStorage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			appLog.Fatalf("storage initialization error: %v", err)
		}
		objectStorage = store
		appLog.Infof("object storage enabled bucket=%s endpoint=%s", cfg.Storage.Bucket, cfg.Storage.Endpoint)
	}

	var (
		membershipRepo repositories.MembershipRepository
		linkRepo       repositories.LinkRepository
		channelRepo    repositories.ChannelConfigRepository
		db             *sql.DB
	)

	switch cfg.DBDriver {
	case "postgres":
		appLog.Info("initializing postgres repositories")
		var err error
		db, err = database.OpenPostgres(cfg.DatabaseDSN)
		if err != nil {
			appLog.Fatalf("database connection error: %v", err)
		}
	case "sqlite":
		appLog.Info("initializing sqlite repositories")
		var err error
		db, err = database.OpenSQLite(cfg.DatabaseDSN)
		if err != nil {
			appLog.Fatalf("database connection error: %v", err)
		}
	default:
		appLog.Info("initializing in-memory repositories")
	}

	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				appLog.Errorf("error closing database: %v", err)
			}
		}()

		var err error
		membershipRepo, err = repositories.NewSQLMembershipRepo(db, cfg.DBDriver)
		if err != nil {
			appLog.Fatalf("membership repository initialization error: %v", err)
		}
		linkRepo, err = repositories.NewSQLLinkRepo(db, cfg.DBDriver)
		if err != nil {
			appLog.Fatalf("link repository initialization error: %v", err)
		}
		channelRepo, err = repositories.NewSQLChannelConfigRepo(db, cfg.DBDriver)
		if err != nil {
			appLog.Fatalf("channel config repository initialization error: %v", err)
		}
	} else {
		membershipRepo = repositories.NewInMemoryMembershipRepo()
		linkRepo = repositories.NewInMemoryLinkRepo()
		channelRepo = repositories.NewInMemoryChannelConfigRepo()
	}

	var tg *telegram.Client
	if cfg.Telegram.BotToken != "" {
		var err error
		tg, err = telegram.New(cfg.Telegram.BotToken, appLog)
		if err != nil {
			appLog.Fatalf("telegram client initialization error: %v", err)
		}
	} else {
		appLog.Warn("telegram bot token not set; link minting and live counts are disabled")
	}

	channelSvc := services.NewChannelService(channelRepo)
	reconcilerSvc := services.NewReconciler(membershipRepo, linkRepo, channelSvc, appLog)
	statsSvc := services.NewStatsService(membershipRepo, channelSvc, nilableCounter(tg), appLog)
	exportSvc := services.NewExportService(membershipRepo, objectStorage, appLog)
	webhookSvc := services.NewWebhookManager(tg, cfg.Telegram.WebhookSecret, appLog)

	var linkSvc services.LinkService
	if tg != nil {
		linkSvc = services.NewLinkService(linkRepo, membershipRepo, channelSvc, tg)
	} else {
		linkSvc = services.NewLinkService(linkRepo, membershipRepo, channelSvc, nil)
	}

	eventLogger := eventlog.NewWriter(cfg.EventLogDir)

	webhookCtrl := controllers.NewWebhookController(reconcilerSvc, webhookSvc, eventLogger, appLog)
	linkCtrl := controllers.NewLinkController(linkSvc)
	memberCtrl := controllers.NewMemberController(membershipRepo, channelSvc)
	channelCtrl := controllers.NewChannelController(channelSvc, nilableInspector(tg), appLog)
	statsCtrl := controllers.NewStatsController(statsSvc)
	exportCtrl := controllers.NewExportController(exportSvc, channelSvc)

	router := httpPlatform.NewRouter(httpPlatform.RouterConfig{
		WebhookCtrl:   webhookCtrl,
		LinkCtrl:      linkCtrl,
		MemberCtrl:    memberCtrl,
		ChannelCtrl:   channelCtrl,
		StatsCtrl:     statsCtrl,
		ExportCtrl:    exportCtrl,
		Logger:        appLog,
		SwaggerEnable: cfg.SwaggerEnable,
		MasterToken:   cfg.MasterToken,
		WebhookSecret: cfg.Telegram.WebhookSecret,
	})

	if tg != nil && cfg.Telegram.WebhookBaseURL != "" {
		if url, err := webhookSvc.Setup(context.Background(), cfg.Telegram.WebhookBaseURL); err != nil {
			appLog.Errorf("webhook registration error: %v", err)
		} else {
			appLog.Infof("webhook registered at %s", url)
		}
	}

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		appLog.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	appLog.Info("shutting down...")
	_ = srv.Shutdown(context.Background())
}

// nilableCounter keeps a typed nil from sneaking into the non-nil interface
// check inside the stats service.
func nilableCounter(tg *telegram.Client) services.ChannelCounter {
	if tg == nil {
		return nil
	}
	return tg
}

func nilableInspector(tg *telegram.Client) controllers.ChannelInspector {
	if tg == nil {
		return nil
	}
	return tg
}
