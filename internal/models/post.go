package models

import "time"

type Post struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Content     string    `json:"content"`
	Image       string    `json:"image,omitempty"`
	AuthorID    int       `gorm:"not null;index" json:"author_id"`
	Author      User      `gorm:"foreignKey:AuthorID" json:"author"`
	CommunityID *int      `gorm:"index" json:"community_id,omitempty"`
	Upvotes     int       `gorm:"-" json:"upvotes"`
	Downvotes   int       `gorm:"-" json:"downvotes"`
	Comments    int       `gorm:"-" json:"comments"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreatePostRequest struct {
	Title       string `json:"title" binding:"required,max=300"`
	Content     string `json:"content"`
	Image       string `json:"image"`
	CommunityID *int   `json:"community_id"`
}

type UpdatePostRequest struct {
	Title   *string `json:"title" binding:"omitempty,min=1,max=300"`
	Content *string `json:"content"`
	Image   *string `json:"image"`
}
