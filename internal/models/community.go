package models

import "time"

type Community struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:50;not null" json:"name"`
	Description string    `json:"description"`
	CreatedBy   int       `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateCommunityRequest struct {
	Name        string `json:"name" binding:"required,min=3,max=50,alphanum"`
	Description string `json:"description" binding:"max=500"`
}
