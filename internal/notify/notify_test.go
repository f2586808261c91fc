package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapitbahay/internal/events"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	sent     []Job
}

func (f *fakeSender) Send(_ context.Context, job Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("transient delivery failure")
	}
	f.sent = append(f.sent, job)
	return nil
}

func (f *fakeSender) delivered() []Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Job, len(f.sent))
	copy(out, f.sent)
	return out
}

func TestDispatcherDeliversAfterDelay(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, nil, 10*time.Millisecond)

	d.Enqueue(context.Background(), Job{PostID: "post-1", Category: "street_food"})
	d.Wait()

	sent := sender.delivered()
	require.Len(t, sent, 1)
	assert.Equal(t, "post-1", sent[0].PostID)
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{failures: 2}
	d := NewDispatcher(sender, nil, time.Millisecond)

	d.Enqueue(context.Background(), Job{PostID: "post-1"})
	d.Wait()

	assert.Len(t, sender.delivered(), 1)
}

func TestDispatcherSkipsIneligiblePosts(t *testing.T) {
	sender := &fakeSender{}
	eligible := func(_ context.Context, _ string) (bool, error) { return false, nil }
	d := NewDispatcher(sender, eligible, time.Millisecond)

	d.Enqueue(context.Background(), Job{PostID: "post-1"})
	d.Wait()

	assert.Empty(t, sender.delivered())
}

func TestEventSenderPublishesNearbyEvent(t *testing.T) {
	rec := &events.Recorder{}
	s := NewEventSender(rec)

	err := s.Send(context.Background(), Job{
		PostID:   "post-1",
		Category: "safety_alert",
		Lat:      14.5995,
		Lng:      120.9842,
	})
	require.NoError(t, err)

	published := rec.ByType(events.TypePostNearby)
	require.Len(t, published, 1)
	assert.Equal(t, "post-1", published[0].PostID)
	assert.Equal(t, "safety_alert", published[0].Category)
	assert.JSONEq(t, `{"lat":14.5995,"lng":120.9842}`, string(published[0].Payload))
}

func TestDispatcherSurvivesCallerCancellation(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, nil, 20*time.Millisecond)

	// A request context dies as soon as the handler returns; the job must
	// still go out.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Enqueue(ctx, Job{PostID: "post-1"})
	d.Wait()

	assert.Len(t, sender.delivered(), 1)
}

func TestDispatcherCloseCancelsPendingJobs(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, nil, time.Hour)

	d.Enqueue(context.Background(), Job{PostID: "post-1"})
	d.Close()

	assert.Empty(t, sender.delivered())
}
