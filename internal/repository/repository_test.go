package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"haruboard/internal/cache"
	"haruboard/internal/db"
	"haruboard/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open("sqlite", ":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { db.Close(gdb) })
	return gdb
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

// syncViews applies each recorded view immediately.
type syncViews struct {
	repo PostRepository
}

func (v *syncViews) Record(postID string) {
	_ = v.repo.IncrementViews(context.Background(), postID, 1)
}

type fixture struct {
	db       *gorm.DB
	profiles ProfileRepository
	posts    PostRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := setupDB(t)
	c, err := cache.NewLRU(100, time.Minute)
	require.NoError(t, err)

	profiles := NewProfileRepository(gdb, c)
	views := &syncViews{}
	posts := NewPostRepository(gdb, profiles, views, zap.NewNop(), WithClock(stepClock()))
	views.repo = posts
	return &fixture{db: gdb, profiles: profiles, posts: posts}
}

func (f *fixture) addProfile(t *testing.T, uid, name string) {
	t.Helper()
	email := uid + "@example.com"
	require.NoError(t, f.profiles.Create(context.Background(), &models.Profile{
		UID:         uid,
		Email:       &email,
		DisplayName: &name,
	}))
}

func (f *fixture) addComments(t *testing.T, postID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.db.Create(&models.Comment{
			ID:       postID[:8] + "-c" + string(rune('a'+i)),
			PostID:   postID,
			AuthorID: "someone",
			Content:  "comment",
		}).Error)
	}
}

func (f *fixture) commentCount(t *testing.T, postID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error)
	return n
}

// failingProfiles simulates an unreachable profile store.
type failingProfiles struct {
	ProfileRepository
}

func (failingProfiles) Get(context.Context, string) (*models.Profile, error) {
	return nil, errors.New("connection reset")
}

func (failingProfiles) GetMany(context.Context, []string) (map[string]*models.Profile, error) {
	return nil, errors.New("connection reset")
}
