package models

import (
	"time"
)

const MaxTitleLength = 200

type Post struct {
	ID        string    `gorm:"primaryKey;type:varchar(36);index:idx_posts_created_id,priority:2" json:"id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	AuthorID  string    `gorm:"type:varchar(36);not null;index" json:"author_id"`
	CreatedAt time.Time `gorm:"not null;index:idx_posts_created_id,priority:1" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
	ViewCount int       `gorm:"not null;default:0" json:"view_count"`

	// 非数据库字段，读取时从 profiles 解析
	AuthorName string `gorm:"-" json:"author_name"`
}

// Edited reports whether the post was updated after it was created.
func (p *Post) Edited() bool {
	return !p.UpdatedAt.Equal(p.CreatedAt)
}
