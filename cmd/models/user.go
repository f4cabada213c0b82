package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin  = "ADMIN"
	RoleExpert = "EXPERT"
	RoleUser   = "USER"
)

type User struct {
	gorm.Model
	Name         string `gorm:"column:name;size:255;not null" json:"name"`
	Email        string `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role         string `gorm:"column:role;size:50;not null;default:USER" json:"role"`
	ProfileImage string `gorm:"column:profile_image;size:500" json:"profile_image,omitempty"`

	// Expert profile fields, empty for ADMIN/USER accounts
	Specialty string `gorm:"column:specialty;size:255" json:"specialty,omitempty"`
	About     string `gorm:"column:about;type:text" json:"about,omitempty"`

	// Rating aggregate, updated only inside the review transaction
	Rating       float64 `gorm:"column:rating;default:0" json:"rating"`
	TotalRatings int     `gorm:"column:total_ratings;default:0" json:"total_ratings"`
	TotalReviews int     `gorm:"column:total_reviews;default:0" json:"total_reviews"`

	Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`
}

func (u *User) IsExpert() bool {
	return u.Role == RoleExpert
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	Token     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
