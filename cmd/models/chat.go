package models

import "gorm.io/gorm"

const (
	RoomActive   = "ACTIVE"
	RoomResolved = "RESOLVED"
)

// ChatRoom pairs one user with one expert. The partial unique index closes
// the check-then-create race: two concurrent creates for the same pair cannot
// both insert an ACTIVE row.
type ChatRoom struct {
	gorm.Model
	UserID   uint   `gorm:"column:user_id;not null;uniqueIndex:idx_chat_rooms_active_pair,where:status = 'ACTIVE'" json:"user_id"`
	ExpertID uint   `gorm:"column:expert_id;not null;uniqueIndex:idx_chat_rooms_active_pair,where:status = 'ACTIVE'" json:"expert_id"`
	Status   string `gorm:"column:status;size:20;not null;default:ACTIVE" json:"status"`

	User   *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Expert *User `gorm:"foreignKey:ExpertID" json:"expert,omitempty"`
}

func (ChatRoom) TableName() string {
	return "chat_rooms"
}

func (r *ChatRoom) IsParticipant(userID uint) bool {
	return r.UserID == userID || r.ExpertID == userID
}

// OtherParticipant returns the receiver for a message sent by senderID.
func (r *ChatRoom) OtherParticipant(senderID uint) uint {
	if senderID == r.UserID {
		return r.ExpertID
	}
	return r.UserID
}

// Message is immutable once created; readers order by created_at asc.
type Message struct {
	gorm.Model
	ChatRoomID uint   `gorm:"column:chat_room_id;not null;index" json:"chat_room_id"`
	SenderID   uint   `gorm:"column:sender_id;not null" json:"sender_id"`
	ReceiverID uint   `gorm:"column:receiver_id;not null" json:"receiver_id"`
	Content    string `gorm:"column:content;type:text;not null" json:"content"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// Review is one-to-one with a resolved ChatRoom; the unique index makes a
// second submission fail instead of double-counting the expert's rating.
type Review struct {
	gorm.Model
	ChatRoomID uint   `gorm:"column:chat_room_id;not null;uniqueIndex" json:"chat_room_id"`
	UserID     uint   `gorm:"column:user_id;not null" json:"user_id"`
	ExpertID   uint   `gorm:"column:expert_id;not null;index" json:"expert_id"`
	Rating     int    `gorm:"column:rating;not null" json:"rating"`
	Comment    string `gorm:"column:comment;type:text" json:"comment,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Review) TableName() string {
	return "reviews"
}
