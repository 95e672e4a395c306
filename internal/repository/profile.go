package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"haruboard/internal/cache"
	"haruboard/internal/models"
)

// ProfileRepository reads and writes the profile collection, keyed by uid.
type ProfileRepository interface {
	Create(ctx context.Context, p *models.Profile) error
	// Get serves from the cache when it can.
	Get(ctx context.Context, uid string) (*models.Profile, error)
	// Refresh always reads the store and replaces the cached copy.
	Refresh(ctx context.Context, uid string) (*models.Profile, error)
	// GetMany returns the profiles that exist; absent uids are omitted.
	GetMany(ctx context.Context, uids []string) (map[string]*models.Profile, error)
	// Forget evicts the cached copy.
	Forget(ctx context.Context, uid string)
}

type profileRepository struct {
	db    *gorm.DB
	cache cache.ProfileCache
}

func NewProfileRepository(db *gorm.DB, c cache.ProfileCache) ProfileRepository {
	return &profileRepository{db: db, cache: c}
}

func (r *profileRepository) Create(ctx context.Context, p *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create profile %s: %w", p.UID, err)
	}
	return nil
}

func (r *profileRepository) Get(ctx context.Context, uid string) (*models.Profile, error) {
	if r.cache != nil {
		if p, ok := r.cache.Get(ctx, uid); ok {
			return p, nil
		}
	}
	return r.Refresh(ctx, uid)
}

func (r *profileRepository) Refresh(ctx context.Context, uid string) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("load profile %s: %w", uid, err)
	}
	if r.cache != nil {
		r.cache.Set(ctx, &p)
	}
	return &p, nil
}

func (r *profileRepository) GetMany(ctx context.Context, uids []string) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(uids))
	missing := make([]string, 0, len(uids))
	seen := make(map[string]bool, len(uids))
	for _, uid := range uids {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		if r.cache != nil {
			if p, ok := r.cache.Get(ctx, uid); ok {
				out[uid] = p
				continue
			}
		}
		missing = append(missing, uid)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var rows []models.Profile
	if err := r.db.WithContext(ctx).Where("uid IN ?", missing).Find(&rows).Error; err != nil {
		return out, fmt.Errorf("load profiles: %w", err)
	}
	for i := range rows {
		p := &rows[i]
		out[p.UID] = p
		if r.cache != nil {
			r.cache.Set(ctx, p)
		}
	}
	return out, nil
}

func (r *profileRepository) Forget(ctx context.Context, uid string) {
	if r.cache != nil {
		r.cache.Delete(ctx, uid)
	}
}
