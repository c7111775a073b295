package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/surajs41/RideEasy-Rental/db"
	"github.com/surajs41/RideEasy-Rental/internal/auth"
	"github.com/surajs41/RideEasy-Rental/internal/booking"
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/config"
	"github.com/surajs41/RideEasy-Rental/internal/handlers"
	"github.com/surajs41/RideEasy-Rental/internal/mq"
	"github.com/surajs41/RideEasy-Rental/internal/notify"
	"github.com/surajs41/RideEasy-Rental/internal/router"
	"github.com/surajs41/RideEasy-Rental/internal/scheduler"
	"github.com/surajs41/RideEasy-Rental/internal/services"
)

func initLogger(file string) {
	if file == "" {
		return
	}

	rotating := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}
	log.SetOutput(rotating)
	gin.DefaultWriter = io.MultiWriter(rotating, os.Stdout)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	initLogger(cfg.LogFile)

	if err := auth.InitJWTSecret(cfg.JWTSecret); err != nil {
		log.Fatalf("Failed to init JWT: %v", err)
	}

	gdb, err := db.ConnectDatabase(cfg.DatabaseDriver, cfg.DatabaseURL, db.Options{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(gdb); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Change feed
	feed := changefeed.NewFeed(cfg.SubscriberBuffer)
	var publisher changefeed.Publisher = feed

	if cfg.ChangeFeedListen {
		publisher = changefeed.NewPGNotifier(gdb, cfg.ChangeFeedChannel)
		listener := changefeed.NewPGListener(cfg.DatabaseURL, cfg.ChangeFeedChannel, feed)
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Printf("Change feed listener stopped: %v", err)
			}
		}()
	}

	// Notification broker
	hub := notify.NewHub(cfg.SubscriberBuffer)
	fanouts := map[string]notify.Fanout{}

	if cfg.RedisURL != "" {
		client, err := notify.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to configure redis: %v", err)
		}
		redisFanout := notify.NewRedisFanout(client, cfg.RedisChannel)
		fanouts["redis"] = redisFanout
		go func() {
			if err := redisFanout.Relay(ctx, hub); err != nil {
				log.Printf("Redis relay stopped: %v", err)
			}
		}()
	} else {
		fanouts["hub"] = hub
	}

	if cfg.PusherAppID != "" {
		fanouts["pusher"] = notify.NewPusherFanout(
			notify.NewPusherClient(cfg.PusherAppID, cfg.PusherKey, cfg.PusherSecret, cfg.PusherCluster))
	}

	if cfg.DiscordWebhook != "" || cfg.SlackWebhook != "" {
		fanouts["webhook"] = services.NewWebhookFanout(cfg.DiscordWebhook, cfg.SlackWebhook)
	}

	broker := notify.NewBroker(notify.NewGormStore(gdb), hub, fanouts)

	// Emit queue between the state machine and the broker. Its workers call
	// broker.Emit, so they must be done before broker.Wait.
	var (
		queue    booking.Enqueuer
		emitters sync.WaitGroup
	)

	if cfg.RabbitURL != "" {
		emitPublisher, err := mq.NewPublisher(cfg.RabbitURL, cfg.EmitExchange)
		if err != nil {
			log.Fatalf("Failed to connect emit publisher: %v", err)
		}
		defer emitPublisher.Close()
		queue = emitPublisher

		consumer := mq.NewConsumer(mq.ConsumerConfig{
			URL:      cfg.RabbitURL,
			Exchange: cfg.EmitExchange,
			Queue:    cfg.EmitQueue,
			DLX:      cfg.EmitDLX,
			Prefetch: cfg.EmitWorkers * 2,
			Name:     "rideeasy-broker",
		}, broker)
		if err := consumer.Connect(); err != nil {
			log.Fatalf("Failed to connect emit consumer: %v", err)
		}
		defer consumer.Close()
		emitters.Add(1)
		go func() {
			defer emitters.Done()
			if err := consumer.Run(ctx); err != nil {
				log.Printf("Emit consumer stopped: %v", err)
			}
		}()
	} else {
		local := notify.NewLocalQueue(cfg.EmitBuffer)
		queue = local
		emitters.Add(1)
		go func() {
			defer emitters.Done()
			local.Run(ctx, broker, cfg.EmitWorkers)
		}()
	}

	store := booking.NewGormStore(gdb, publisher)
	machine := booking.NewMachine(store, queue)

	sched, err := scheduler.NewScheduler(store, machine, cfg.CompletionSweep)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	r := router.NewRouter(&handlers.Handler{
		Machine: machine,
		Broker:  broker,
		Feed:    feed,
		Origins: cfg.Origins(),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("RideEasy listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Close()
	feed.DropAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}

	emitters.Wait()
	broker.Wait()
}
