package reactions

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapitbahay/internal/events"
	"kapitbahay/internal/models"
	"kapitbahay/internal/proximity"
	"kapitbahay/internal/store"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.Store
	index    *proximity.Index
	recorder *events.Recorder
	agg      *Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store:    st,
		index:    proximity.NewIndex(),
		recorder: &events.Recorder{},
	}
	f.agg = NewAggregator(st, f.index, f.recorder)
	f.agg.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) createPost(t *testing.T, expiresIn time.Duration) *models.Post {
	t.Helper()
	p := &models.Post{
		ID:        "post-1",
		AuthorID:  "author-1",
		Category:  models.CategoryStreetFood,
		Content:   "taho vendor at the basketball court",
		Lat:       14.5995,
		Lng:       120.9842,
		Status:    models.StatusActive,
		ExpiresAt: testNow.Add(expiresIn),
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, f.store.CreatePost(context.Background(), p))
	f.index.Insert(proximity.Entry{
		ID: p.ID, AuthorID: p.AuthorID, Category: p.Category, Content: p.Content,
		Lat: p.Lat, Lng: p.Lng, CreatedAt: p.CreatedAt, ExpiresAt: p.ExpiresAt,
	})
	return p
}

func (f *fixture) setTrust(t *testing.T, userID string, score float64) {
	t.Helper()
	require.NoError(t, f.store.UpsertUser(context.Background(), models.User{
		ID: userID, Role: models.RoleResident, TrustScore: score, CreatedAt: testNow,
	}))
}

func TestApplyRejectsInvalidType(t *testing.T) {
	f := newFixture(t)
	f.createPost(t, 4*time.Hour)

	_, err := f.agg.Apply(context.Background(), "post-1", "user-2", "applause")
	assert.ErrorIs(t, err, ErrInvalidReaction)
}

func TestApplySwitchingReactionsKeepsNetOne(t *testing.T) {
	f := newFixture(t)
	f.createPost(t, 4*time.Hour)

	out, err := f.agg.Apply(context.Background(), "post-1", "user-2", models.ReactionConfirm)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionCounts{Confirm: 1}, out.Counts)

	out, err = f.agg.Apply(context.Background(), "post-1", "user-2", models.ReactionThanks)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionCounts{Thanks: 1}, out.Counts)

	// The index entry tracks the live confirm count.
	entry, found := f.index.Get("post-1")
	require.True(t, found)
	assert.Zero(t, entry.Confirm)
}

func TestConfirmFromTrustedUserExtendsNearExpiry(t *testing.T) {
	f := newFixture(t)
	f.createPost(t, 90*time.Minute)
	f.setTrust(t, "trusted", 62)

	out, err := f.agg.Apply(context.Background(), "post-1", "trusted", models.ReactionConfirm)
	require.NoError(t, err)
	assert.True(t, out.TTLExtended)
	assert.True(t, out.ExpiresAt.Equal(testNow.Add(150*time.Minute)))

	entry, found := f.index.Get("post-1")
	require.True(t, found)
	assert.True(t, entry.ExpiresAt.Equal(out.ExpiresAt))

	// Re-sending confirm never re-extends.
	out, err = f.agg.Apply(context.Background(), "post-1", "trusted", models.ReactionConfirm)
	require.NoError(t, err)
	assert.False(t, out.TTLExtended)
}

func TestConfirmFromUntrustedUserNeverExtends(t *testing.T) {
	f := newFixture(t)
	f.createPost(t, 30*time.Minute)
	f.setTrust(t, "newcomer", 12)

	out, err := f.agg.Apply(context.Background(), "post-1", "newcomer", models.ReactionConfirm)
	require.NoError(t, err)
	assert.False(t, out.TTLExtended)
}

func TestThirdNoLongerValidRemovesAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	f.createPost(t, 4*time.Hour)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		out, err := f.agg.Apply(ctx, "post-1", user, models.ReactionNoLongerValid)
		require.NoError(t, err)
		assert.False(t, out.AutoRemoved)
	}
	assert.Empty(t, f.recorder.ByType(events.TypePostExpired))

	out, err := f.agg.Apply(ctx, "post-1", "u3", models.ReactionNoLongerValid)
	require.NoError(t, err)
	assert.True(t, out.AutoRemoved)

	_, found := f.index.Get("post-1")
	assert.False(t, found)
	removed := f.recorder.ByType(events.TypePostExpired)
	require.Len(t, removed, 1)
	assert.Equal(t, "post-1", removed[0].PostID)
}

func TestReactionOnExpiredPostRejected(t *testing.T) {
	f := newFixture(t)
	p := f.createPost(t, -time.Minute)

	_, err := f.store.ExpireDue(context.Background(), testNow)
	require.NoError(t, err)

	_, err = f.agg.Apply(context.Background(), p.ID, "user-2", models.ReactionConfirm)
	assert.ErrorIs(t, err, store.ErrPostNotActive)
}
