package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presence/internal/attendance"
	"presence/internal/config"
	"presence/internal/queue"
	"presence/internal/recognizer"
	"presence/internal/roster"
	"presence/internal/store"
)

var (
	processedCheckins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_worker_checkins_processed_total",
		Help: "Check-in probes matched and reconciled.",
	})
	failedCheckins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "presence_worker_checkins_failed_total",
		Help: "Check-in probes that could not be reconciled.",
	}, []string{"reason"})
)

// The worker consumes check-in messages, matches the probe sample
// against the enrolled gallery, and reconciles the entry's confidence.
// The entry's status is never touched here; it was fixed at creation.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "presence:checkins")
	}

	entries := attendance.NewRepository(db.Client)
	people := roster.NewRepository(db.Client)

	var rec recognizer.Recognizer
	if cfg.RecognizerBackend == "remote" {
		remote := recognizer.NewRemote(cfg.FaceServiceURL, cfg.FaceSkip)
		if !cfg.FaceSkip {
			if err := remote.Health(ctx); err != nil {
				log.Printf("WARNING: face service not available: %v", err)
				log.Println("worker will retry when messages arrive")
			} else {
				log.Println("face service connected")
			}
		}
		rec = remote
	} else {
		rec = recognizer.NewSimulated(cfg.RecognizerSeed)
	}

	go func() {
		log.Printf("metrics listening on %s", cfg.WorkerMetricsAddr)
		if err := http.ListenAndServe(cfg.WorkerMetricsAddr, promhttp.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "checkin" {
			continue
		}
		process(ctx, msg, entries, people, rec)
		time.Sleep(10 * time.Millisecond) // Small delay between processing
	}

	log.Println("worker stopped")
}

func process(ctx context.Context, msg queue.Message, entries *attendance.Repository, people *roster.Repository, rec recognizer.Recognizer) {
	var payload struct {
		EntryID string `json:"entry_id"`
		Sample  string `json:"sample"`
	}
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		failedCheckins.WithLabelValues("bad_payload").Inc()
		log.Printf("malformed checkin payload: %v", err)
		return
	}
	log.Printf("processing entry %s", payload.EntryID)

	entry, err := entries.Get(ctx, payload.EntryID)
	if err != nil {
		failedCheckins.WithLabelValues("fetch").Inc()
		log.Printf("fetch entry %s failed: %v", payload.EntryID, err)
		return
	}
	if entry == nil {
		failedCheckins.WithLabelValues("missing_entry").Inc()
		log.Printf("entry %s not found", payload.EntryID)
		return
	}

	sample, err := base64.StdEncoding.DecodeString(payload.Sample)
	if err != nil {
		failedCheckins.WithLabelValues("bad_sample").Inc()
		log.Printf("entry %s: sample not base64: %v", entry.ID, err)
		return
	}

	probe, err := rec.Describe(ctx, sample)
	if err != nil {
		failedCheckins.WithLabelValues("describe").Inc()
		log.Printf("entry %s: describe failed: %v", entry.ID, err)
		return
	}

	gallery, err := people.Signatures(ctx)
	if err != nil {
		failedCheckins.WithLabelValues("gallery").Inc()
		log.Printf("entry %s: gallery load failed: %v", entry.ID, err)
		return
	}
	candidates := make([]recognizer.Candidate, 0, len(gallery))
	for id, sig := range gallery {
		candidates = append(candidates, recognizer.Candidate{PersonID: id, Signature: sig})
	}

	match, err := rec.Match(ctx, probe, candidates)
	if err != nil {
		if errors.Is(err, recognizer.ErrNoMatch) {
			failedCheckins.WithLabelValues("no_match").Inc()
			log.Printf("entry %s: no gallery match", entry.ID)
		} else {
			failedCheckins.WithLabelValues("match").Inc()
			log.Printf("entry %s: match failed: %v", entry.ID, err)
		}
		return
	}
	if match.PersonID != entry.PersonID {
		failedCheckins.WithLabelValues("identity_mismatch").Inc()
		log.Printf("entry %s: probe matched %s, expected %s", entry.ID, match.PersonID, entry.PersonID)
		return
	}

	if err := entries.UpdateConfidence(ctx, entry.ID, match.Confidence); err != nil {
		failedCheckins.WithLabelValues("update").Inc()
		log.Printf("entry %s: confidence update failed: %v", entry.ID, err)
		return
	}
	processedCheckins.Inc()
	log.Printf("entry %s reconciled, confidence %.2f", entry.ID, match.Confidence)
}
