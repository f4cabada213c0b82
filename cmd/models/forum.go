package models

import "gorm.io/gorm"

const (
	CategoryUmum      = "UMUM"
	CategoryTeknologi = "TEKNOLOGI"
	CategoryKesehatan = "KESEHATAN"
	CategoryEdukasi   = "EDUKASI"
	CategoryLainnya   = "LAINNYA"
)

const (
	ReactionLike    = "LIKE"
	ReactionDislike = "DISLIKE"
)

func ValidCategory(c string) bool {
	switch c {
	case CategoryUmum, CategoryTeknologi, CategoryKesehatan, CategoryEdukasi, CategoryLainnya:
		return true
	}
	return false
}

type Thread struct {
	gorm.Model
	AuthorID uint   `gorm:"column:author_id;not null;index" json:"author_id"`
	Title    string `gorm:"column:title;size:255;not null" json:"title"`
	Content  string `gorm:"column:content;type:text;not null" json:"content"`
	Category string `gorm:"column:category;size:50;not null;default:UMUM" json:"category"`

	Author   *User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Comments []ForumComment `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

type ForumComment struct {
	gorm.Model
	AuthorID uint   `gorm:"column:author_id;not null" json:"author_id"`
	ThreadID uint   `gorm:"column:thread_id;not null;index" json:"thread_id"`
	Content  string `gorm:"column:content;type:text;not null" json:"content"`

	Author *User       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Likes  []ForumLike `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"likes,omitempty"`
}

// ForumLike holds a single reaction per (user, comment). The unique index is
// what guarantees "at most one row" regardless of handler interleaving.
type ForumLike struct {
	gorm.Model
	UserID    uint   `gorm:"column:user_id;not null;uniqueIndex:idx_forum_likes_user_comment" json:"user_id"`
	CommentID uint   `gorm:"column:comment_id;not null;uniqueIndex:idx_forum_likes_user_comment" json:"comment_id"`
	Type      string `gorm:"column:type;size:10;not null" json:"type"`
}
