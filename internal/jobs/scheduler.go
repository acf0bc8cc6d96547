package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/thebookish/proofsnap/internal/service"
)

// Scheduler runs the api-side periodic work: sweeping stale capture
// sessions in-process and enqueuing deferred maintenance (expired
// share-link purge) onto the worker stream.
type Scheduler struct {
	cron    *cron.Cron
	queue   *redis.Client
	stream  string
	capture *service.CaptureService
	log     zerolog.Logger
}

func NewScheduler(queue *redis.Client, stream string, capture *service.CaptureService, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:    c,
		queue:   queue,
		stream:  stream,
		capture: capture,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 */5 * * * *", s.sweepCaptureSessions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 * * * *", s.enqueueLinkPurge); err != nil { // hourly
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	_, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		s.cron.Stop()
		cancel()
	}()
	return cancel
}

func (s *Scheduler) sweepCaptureSessions() {
	if s.capture == nil {
		return
	}
	s.capture.SweepExpired()
}

func (s *Scheduler) enqueueLinkPurge() {
	if err := s.enqueueTask(map[string]any{
		"type": "purge_expired_links",
	}); err != nil {
		s.log.Error().Err(err).Msg("enqueue link purge failed")
	}
}

func (s *Scheduler) enqueueTask(payload map[string]any) error {
	if s.queue == nil {
		return nil
	}
	_, err := s.queue.XAdd(context.Background(), &redis.XAddArgs{
		Stream: s.stream,
		Values: payload,
	}).Result()
	return err
}
