package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"presence/internal/api"
	"presence/internal/attendance"
	"presence/internal/config"
	"presence/internal/queue"
	"presence/internal/recognizer"
	"presence/internal/roster"
	"presence/internal/station"
	"presence/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	srv := &api.Server{Config: cfg}

	var db *store.DB
	if cfg.StoreBackend == "memory" {
		log.Println("using in-memory stores (STORE_BACKEND=memory)")
		srv.People = roster.NewMemory()
		srv.Entries = attendance.NewMemory()
		srv.Stations = station.NewMemory()
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			return err
		}
		srv.People = roster.NewRepository(db.Client)
		srv.Entries = attendance.NewRepository(db.Client)
		srv.Stations = station.NewRepository(db.Client)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	srv.Cache = redisClient.Client

	if cfg.QueueBackend == "memory" {
		srv.Queue = queue.NewInMemory(64)
	} else {
		srv.Queue = queue.NewRedisQueue(redisClient.Client, "presence:checkins")
	}

	srv.Recognizer = newRecognizer(cfg)

	hour, minute := cfg.ScheduleStartParts()
	sched := attendance.Schedule{
		StartHour:   hour,
		StartMinute: minute,
		Grace:       time.Duration(cfg.GraceMinutes) * time.Minute,
	}
	srv.Marks = attendance.NewService(srv.Entries, sched, cfg.DedupWindow)

	srv.DBHealthy = func(ctx context.Context) bool {
		if db == nil {
			return true // memory backend
		}
		return db.Client.PingContext(ctx) == nil
	}
	srv.RedisHealthy = redisClient.Healthy

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(srv),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func newRecognizer(cfg config.App) recognizer.Recognizer {
	if cfg.RecognizerBackend == "remote" {
		return recognizer.NewRemote(cfg.FaceServiceURL, cfg.FaceSkip)
	}
	return recognizer.NewSimulated(cfg.RecognizerSeed)
}
