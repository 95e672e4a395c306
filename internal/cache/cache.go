// Package cache keeps profile records close to the pages that render them.
// Profiles never change after signup, so a cached copy is always accurate
// until the owner signs out.
package cache

import (
	"context"

	"haruboard/internal/models"
)

type ProfileCache interface {
	Get(ctx context.Context, uid string) (*models.Profile, bool)
	Set(ctx context.Context, p *models.Profile)
	Delete(ctx context.Context, uid string)
}
