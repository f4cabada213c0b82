package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Post struct {
	gorm.Model
	AuthorID uint           `gorm:"column:author_id;not null;index" json:"author_id"`
	Title    string         `gorm:"column:title;size:255;not null" json:"title"`
	Content  string         `gorm:"column:content;type:text;not null" json:"content"`
	Image    string         `gorm:"column:image;size:500" json:"image,omitempty"`
	Tags     pq.StringArray `gorm:"type:text[];column:tags" json:"tags,omitempty"`

	Author   *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Comments []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

type Comment struct {
	gorm.Model
	AuthorID uint   `gorm:"column:author_id;not null" json:"author_id"`
	PostID   uint   `gorm:"column:post_id;not null;index" json:"post_id"`
	Content  string `gorm:"column:content;type:text;not null" json:"content"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
