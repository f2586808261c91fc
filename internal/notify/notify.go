// Package notify delivers proximity notifications for newly activated posts.
// Dispatch is deliberately delayed a few seconds so that posts pulled into
// moderation or removed as duplicates never generate a notification, and
// delivery retries with exponential backoff before giving up.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"kapitbahay/internal/events"
)

// Dispatch tuning.
const (
	DefaultDelay = 5 * time.Second
	maxRetries   = 3
)

// Job describes a post that nearby users should hear about.
type Job struct {
	PostID   string
	Category string
	Lat      float64
	Lng      float64
}

// Sender delivers one notification job to its audience.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// EventSender announces jobs on the realtime event stream so that connected
// clients near the post can surface it.
type EventSender struct {
	pub events.Publisher
}

var _ Sender = (*EventSender)(nil)

func NewEventSender(pub events.Publisher) *EventSender {
	return &EventSender{pub: pub}
}

func (s *EventSender) Send(_ context.Context, job Job) error {
	payload, err := json.Marshal(map[string]float64{"lat": job.Lat, "lng": job.Lng})
	if err != nil {
		return fmt.Errorf("marshaling notification payload: %w", err)
	}
	s.pub.Publish(events.Event{
		Type:      events.TypePostNearby,
		PostID:    job.PostID,
		Category:  job.Category,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// StillEligible reports whether the post should still be announced by the
// time the delay elapses. Posts that were moderated away in the meantime
// return false.
type StillEligible func(ctx context.Context, postID string) (bool, error)

// Dispatcher schedules delayed notification jobs. Jobs outlive the request
// that enqueued them: delivery is bound to the dispatcher's own lifetime,
// never to the caller's context.
type Dispatcher struct {
	sender   Sender
	eligible StillEligible
	delay    time.Duration

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewDispatcher builds a dispatcher. A zero delay uses the default; a nil
// eligibility check treats every job as eligible.
func NewDispatcher(sender Sender, eligible StillEligible, delay time.Duration) *Dispatcher {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if eligible == nil {
		eligible = func(context.Context, string) (bool, error) { return true, nil }
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Dispatcher{sender: sender, eligible: eligible, delay: delay, ctx: ctx, stop: stop}
}

// Enqueue schedules the job. It returns immediately; delivery happens on a
// background goroutine after the dispatch delay. The caller's context is
// detached first: an HTTP request context dies the moment the handler
// returns, long before the delay elapses, and a client disconnect must not
// swallow the notification. Only dispatcher shutdown cancels a pending job.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) {
	jobCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		select {
		case <-time.After(d.delay):
		case <-d.ctx.Done():
			return
		}

		ok, err := d.eligible(jobCtx, job.PostID)
		if err != nil {
			log.Warn().Err(err).Str("post_id", job.PostID).
				Msg("notification eligibility check failed")
			return
		}
		if !ok {
			log.Debug().Str("post_id", job.PostID).
				Msg("post no longer eligible, skipping notification")
			return
		}

		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), d.ctx)
		err = backoff.Retry(func() error {
			return d.sender.Send(jobCtx, job)
		}, policy)
		if err != nil {
			log.Error().Err(err).Str("post_id", job.PostID).
				Msg("notification delivery failed after retries")
		}
	}()
}

// Wait blocks until every enqueued job has finished. Intended for tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels pending jobs and waits for in-flight deliveries to finish.
func (d *Dispatcher) Close() {
	d.stop()
	d.wg.Wait()
}
