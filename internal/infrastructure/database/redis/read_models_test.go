package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/domain/scoring"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/internal/testutil"
	pkgerrors "github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// countingStore counts reads that reach the backing read models.
type countingStore struct {
	*testutil.MemoryReadModels
	mu    sync.Mutex
	reads map[string]int
}

func (s *countingStore) hit(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[kind]++
}

func (s *countingStore) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[kind]
}

func (s *countingStore) GetUser(ctx context.Context, id string) (*scoring.User, error) {
	s.hit("user")
	return s.MemoryReadModels.GetUser(ctx, id)
}

func (s *countingStore) GetLearnerProfile(ctx context.Context, id string) (*scoring.LearnerProfile, error) {
	s.hit("profile")
	return s.MemoryReadModels.GetLearnerProfile(ctx, id)
}

func (s *countingStore) GetCourse(ctx context.Context, id string) (*scoring.Course, error) {
	s.hit("course")
	return s.MemoryReadModels.GetCourse(ctx, id)
}

func (s *countingStore) GetProvider(ctx context.Context, id string) (*scoring.TrainingProvider, error) {
	s.hit("provider")
	return s.MemoryReadModels.GetProvider(ctx, id)
}

func newCachedReadModels(t *testing.T) (*CachedReadModels, *countingStore, *Client) {
	t.Helper()
	client, _ := newTestClient(t)
	mem := testutil.NewMemoryReadModels()
	testutil.SeedLending(mem, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	store := &countingStore{MemoryReadModels: mem, reads: map[string]int{}}
	log := logging.NewNopLogger()
	return NewCachedReadModels(store, NewRedisCache(client, log), time.Minute, log), store, client
}

func TestCachedReadModels_ServesRepeatReadsFromCache(t *testing.T) {
	rm, store, _ := newCachedReadModels(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := rm.GetUser(ctx, testutil.StrongLearnerID)
		require.NoError(t, err)
		assert.Equal(t, testutil.StrongLearnerID, u.ID)

		c, err := rm.GetCourse(ctx, testutil.CourseID)
		require.NoError(t, err)
		assert.Equal(t, testutil.ProviderID, c.ProviderID)

		p, err := rm.GetProvider(ctx, testutil.ProviderID)
		require.NoError(t, err)
		assert.Equal(t, testutil.ProviderID, p.ID)
	}
	assert.Equal(t, 1, store.count("user"))
	assert.Equal(t, 1, store.count("course"))
	assert.Equal(t, 1, store.count("provider"))

	acct, err := rm.RecipientFor(ctx, testutil.ProviderID)
	require.NoError(t, err)
	assert.NotEmpty(t, acct.IFSC)
	assert.Equal(t, 1, store.count("provider"))
}

func TestCachedReadModels_MissingProfileIsNil(t *testing.T) {
	rm, store, _ := newCachedReadModels(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		p, err := rm.GetLearnerProfile(ctx, testutil.WeakLearnerID)
		require.NoError(t, err)
		assert.Nil(t, p)
	}
	assert.Equal(t, 1, store.count("profile"))
}

func TestCachedReadModels_NotFoundIsNotCached(t *testing.T) {
	rm, store, _ := newCachedReadModels(t)
	ctx := context.Background()

	_, err := rm.GetCourse(ctx, "no-such-course")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSubjectNotFound))
	_, err = rm.GetCourse(ctx, "no-such-course")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSubjectNotFound))
	assert.Equal(t, 2, store.count("course"))
}

func TestCachedReadModels_ScoreWritesEvict(t *testing.T) {
	rm, store, _ := newCachedReadModels(t)
	ctx := context.Background()
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := rm.GetProvider(ctx, testutil.ProviderID)
	require.NoError(t, err)

	require.NoError(t, rm.SaveTPScore(ctx, testutil.ProviderID, 91.5, scoring.TPComponents{Completion: 27}, at))
	p, err := rm.GetProvider(ctx, testutil.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, 91.5, p.TPScore)
	assert.Equal(t, 2, store.count("provider"))

	_, err = rm.GetLearnerProfile(ctx, testutil.StrongLearnerID)
	require.NoError(t, err)
	require.NoError(t, rm.SaveBorrowerScore(ctx, testutil.StrongLearnerID, 77, scoring.BorrowerComponents{KYC: 20}, at))
	prof, err := rm.GetLearnerProfile(ctx, testutil.StrongLearnerID)
	require.NoError(t, err)
	assert.Equal(t, 77.0, prof.BorrowerScore)
	assert.Equal(t, 2, store.count("profile"))

	err = rm.SaveTPScore(ctx, "tp-unknown", 10, scoring.TPComponents{}, at)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSubjectNotFound))
}

func TestCachedReadModels_Invalidate(t *testing.T) {
	rm, store, _ := newCachedReadModels(t)
	ctx := context.Background()

	_, err := rm.GetCourse(ctx, testutil.CourseID)
	require.NoError(t, err)
	rm.Invalidate(ctx, "course", testutil.CourseID)
	_, err = rm.GetCourse(ctx, testutil.CourseID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.count("course"))
}

func TestCachedReadModels_FallsThroughWhenRedisIsDown(t *testing.T) {
	rm, store, client := newCachedReadModels(t)
	require.NoError(t, client.Close())
	ctx := context.Background()

	u, err := rm.GetUser(ctx, testutil.StrongLearnerID)
	require.NoError(t, err)
	assert.Equal(t, testutil.StrongLearnerID, u.ID)

	p, err := rm.GetLearnerProfile(ctx, testutil.WeakLearnerID)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, 1, store.count("user"))
	assert.Equal(t, 1, store.count("profile"))
}

//Personal.AI order the ending
