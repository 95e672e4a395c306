package models

import (
	"time"
)

// Profile is the public record of a registered user. It is written once at
// signup and never edited afterwards.
type Profile struct {
	UID         string    `gorm:"primaryKey;type:varchar(36)" json:"uid"`
	Email       *string   `gorm:"size:320" json:"email"`
	DisplayName *string   `gorm:"size:100" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Name returns the display name, or "" when none was set.
func (p *Profile) Name() string {
	if p == nil || p.DisplayName == nil {
		return ""
	}
	return *p.DisplayName
}

// Credential is owned by the identity provider and never rendered.
type Credential struct {
	UID          string    `gorm:"primaryKey;type:varchar(36)" json:"uid"`
	Email        string    `gorm:"uniqueIndex;size:320;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Disabled     bool      `gorm:"default:false" json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
}
