package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap/zapcore"

	"prepstreak/cache"
	configs "prepstreak/config"
	"prepstreak/daywindow"
	"prepstreak/logger"
	"prepstreak/model"
	"prepstreak/mongoconn"
	"prepstreak/natsclient"
	"prepstreak/repository"
	"prepstreak/service"
)

func main() {
	configValues := configs.LoadConfig()

	logStreamer, err := logger.NewLogStreamer(os.Getenv("ENVIRONMENT"))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logStreamer.Sync()

	window, err := daywindow.Load(configValues.PracticeTimezone)
	if err != nil {
		log.Fatalf("Failed to load practice timezone: %v", err)
	}

	ctx := context.Background()

	mongoclientInstance, err := mongoconn.ConnectDB(ctx, configValues.MongoDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoclientInstance.Disconnect(ctx)

	repoInstance := repository.NewRepository(mongoclientInstance, configValues.MongoDBName)
	if err := repoInstance.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}

	redisCacheClient := cache.NewRedisCache(configValues.RedisURL, "", 0)
	defer redisCacheClient.Close()

	natsClient, err := natsclient.NewNatsClient(configValues.NATSURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	serviceInstance := service.NewService(
		repoInstance,
		natsClient,
		redisCacheClient,
		window,
		service.Config{
			CooldownDays:     configValues.CooldownDays,
			SolvedNoteMinLen: configValues.SolvedNoteMinLen,
			AssignCronSpec:   configValues.AssignCronSpec,
		},
		logStreamer,
	)

	if err := serviceInstance.RegisterHandlers(natsClient); err != nil {
		log.Fatalf("Failed to register NATS handlers: %v", err)
	}

	// Manual re-trigger for the daily assignment job; idempotent, so
	// racing the cron is fine.
	_, err = natsClient.Subscribe(natsclient.SubjectAssignTrigger, func(msg *nats.Msg) {
		logStreamer.Log(zapcore.InfoLevel, "", "Assignment re-trigger received", map[string]any{
			"subject": msg.Subject,
		}, "TRIGGER", nil)
		serviceInstance.AssignDaily(context.Background(), window.Today(), model.Skills)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to assignment trigger: %v", err)
	}

	cronRunner := serviceInstance.StartCronJob()
	defer cronRunner.Stop()

	logStreamer.Log(zapcore.InfoLevel, "", "PracticeService running", map[string]any{
		"timezone": configValues.PracticeTimezone,
	}, "MAIN", nil)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down PracticeService")
}
