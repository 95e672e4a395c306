package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"haruboard/internal/models"
)

const (
	DefaultPageSize = 10

	// UnknownAuthor is shown when the author's profile cannot be resolved.
	UnknownAuthor = "Unknown"
)

// Page is one slice of the post list, newest first.
type Page struct {
	Posts      []models.Post
	NextCursor string
	HasMore    bool
}

// ViewRecorder receives one call per post detail view. Implementations must
// not block the caller.
type ViewRecorder interface {
	Record(postID string)
}

// ViewRecorderFunc adapts a function to ViewRecorder.
type ViewRecorderFunc func(postID string)

func (f ViewRecorderFunc) Record(postID string) { f(postID) }

// PostRepository is the data-access contract for the post collection.
//
// UpdatePost and DeletePost do not check ownership. Pages compare the post's
// AuthorID with the session before offering or accepting either action.
type PostRepository interface {
	ListPosts(ctx context.Context, pageSize int, cursor string) (*Page, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	// LookupPost reads a post without counting a view.
	LookupPost(ctx context.Context, id string) (*models.Post, error)
	CreatePost(ctx context.Context, title, content, authorID string) (string, error)
	UpdatePost(ctx context.Context, id, title, content string) error
	DeletePost(ctx context.Context, id string) error
	// IncrementViews is the only writer of view_count; n < 1 is a no-op.
	IncrementViews(ctx context.Context, id string, n int) error
}

type PostOption func(*postRepository)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) PostOption {
	return func(r *postRepository) { r.now = now }
}

type postRepository struct {
	db       *gorm.DB
	profiles ProfileRepository
	views    ViewRecorder
	log      *zap.Logger
	now      func() time.Time
}

func NewPostRepository(db *gorm.DB, profiles ProfileRepository, views ViewRecorder, log *zap.Logger, opts ...PostOption) PostRepository {
	r := &postRepository{
		db:       db,
		profiles: profiles,
		views:    views,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// timestamp is truncated to microseconds so values survive a round trip
// through PostgreSQL unchanged.
func (r *postRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func (r *postRepository) ListPosts(ctx context.Context, pageSize int, cursor string) (*Page, error) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	q := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pageSize)

	if cursor != "" {
		createdAt, id, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}

	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	r.resolveAuthors(ctx, posts)

	page := &Page{Posts: posts}
	if len(posts) == pageSize {
		page.HasMore = true
		page.NextCursor = encodeCursor(&posts[len(posts)-1])
	}
	return page, nil
}

func (r *postRepository) GetPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := r.LookupPost(ctx, id)
	if err != nil {
		return nil, err
	}

	// 浏览量异步累加，返回值先行反映本次浏览
	if r.views != nil {
		r.views.Record(post.ID)
	}
	post.ViewCount++

	return post, nil
}

func (r *postRepository) LookupPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}

	post.AuthorName = UnknownAuthor
	author, err := r.profiles.Get(ctx, post.AuthorID)
	switch {
	case err == nil:
		post.AuthorName = authorName(author)
	case !errors.Is(err, ErrProfileNotFound):
		r.log.Warn("resolve author failed", zap.String("post_id", id), zap.Error(err))
	}
	return &post, nil
}

func (r *postRepository) CreatePost(ctx context.Context, title, content, authorID string) (string, error) {
	now := r.timestamp()
	post := models.Post{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Content:   strings.TrimSpace(content),
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
		ViewCount: 0,
	}
	if err := r.db.WithContext(ctx).Create(&post).Error; err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return post.ID, nil
}

// UpdatePost is last-write-wins; there is no version check.
func (r *postRepository) UpdatePost(ctx context.Context, id, title, content string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":      strings.TrimSpace(title),
			"content":    strings.TrimSpace(content),
			"updated_at": r.timestamp(),
		})
	if res.Error != nil {
		return fmt.Errorf("update post %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// DeletePost removes the post and every comment that references it in a
// single transaction.
func (r *postRepository) DeletePost(ctx context.Context, id string) error {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ?", id).Delete(&models.Comment{})
		if res.Error != nil {
			return fmt.Errorf("delete comments: %w", res.Error)
		}
		removed = res.RowsAffected

		res = tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return fmt.Errorf("delete post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Info("post deleted", zap.String("post_id", id), zap.Int64("comments_removed", removed))
	return nil
}

func (r *postRepository) IncrementViews(ctx context.Context, id string, n int) error {
	if n < 1 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", n)).
		Error
	if err != nil {
		return fmt.Errorf("increment views of %s: %w", id, err)
	}
	return nil
}

// resolveAuthors fills AuthorName for a whole page with one batched lookup.
// Lookup failures degrade to UnknownAuthor instead of failing the list.
func (r *postRepository) resolveAuthors(ctx context.Context, posts []models.Post) {
	if len(posts) == 0 {
		return
	}
	uids := make([]string, len(posts))
	for i, p := range posts {
		uids[i] = p.AuthorID
	}
	profiles, err := r.profiles.GetMany(ctx, uids)
	if err != nil {
		r.log.Warn("resolve authors failed", zap.Int("posts", len(posts)), zap.Error(err))
	}
	for i := range posts {
		posts[i].AuthorName = authorName(profiles[posts[i].AuthorID])
	}
}

func authorName(p *models.Profile) string {
	if name := p.Name(); name != "" {
		return name
	}
	return UnknownAuthor
}

// Cursor format: "<created_at unix nanos>::<id>".
func encodeCursor(p *models.Post) string {
	return strconv.FormatInt(p.CreatedAt.UnixNano(), 10) + "::" + p.ID
}

func decodeCursor(cursor string) (time.Time, string, error) {
	ts, id, ok := strings.Cut(cursor, "::")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return time.Unix(0, nanos).UTC(), id, nil
}
