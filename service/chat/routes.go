package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andikasp/ParentCare-server/cmd/models"
	"github.com/andikasp/ParentCare-server/cmd/utils"
	"github.com/andikasp/ParentCare-server/service/ws"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// Notifier delivers a best-effort push to a user's registered devices.
// Implemented by the notification handler; failures are logged, never fatal.
type Notifier interface {
	PushToUser(userID uint, title, body string, data map[string]interface{})
}

type ChatHandler struct {
	db       *gorm.DB
	hub      *ws.Hub
	notifier Notifier
}

func NewChatHandler(db *gorm.DB, notifier Notifier) *ChatHandler {
	hub := ws.NewHub()
	go hub.Run()

	return &ChatHandler{
		db:       db,
		hub:      hub,
		notifier: notifier,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/chat/create", utils.AuthMiddleware(h.CreateRoom)).Methods("POST")
	router.HandleFunc("/chat/rooms", utils.AuthMiddleware(h.GetRooms)).Methods("GET")
	router.HandleFunc("/chat/{id}/messages", utils.AuthMiddleware(h.GetMessages)).Methods("GET")
	router.HandleFunc("/chat/{id}/messages", utils.AuthMiddleware(h.PostMessage)).Methods("POST")
	router.HandleFunc("/chat/{id}/resolve", utils.AuthMiddleware(h.ResolveRoom)).Methods("POST")
	router.HandleFunc("/chat/{id}/review", utils.AuthMiddleware(h.SubmitReview)).Methods("POST")

	// Socket subscription per room; polling GET stays as the fallback path.
	router.HandleFunc("/ws/chat/{id}", utils.AuthMiddleware(h.HandleRoomSocket))
}

// roomEvent is the payload broadcast to room subscribers.
type roomEvent struct {
	Type       string          `json:"type"` // message, resolved
	ChatRoomID uint            `json:"chat_room_id"`
	Message    *models.Message `json:"message,omitempty"`
}

func isDuplicateKeyError(err error) bool {
	return err != nil &&
		(strings.Contains(err.Error(), "duplicate key") ||
			strings.Contains(err.Error(), "UNIQUE constraint"))
}

// CreateRoom returns the caller's existing ACTIVE room with the expert, or
// creates one. The partial unique index on (user_id, expert_id, ACTIVE)
// backs up the look-before-create under concurrent requests.
func (h *ChatHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var createRequest struct {
		ExpertID uint `json:"expert_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var expert models.User
	if err := h.db.Where("id = ? AND role = ?", createRequest.ExpertID, models.RoleExpert).
		First(&expert).Error; err != nil {
		http.Error(w, "Expert not found", http.StatusNotFound)
		return
	}

	var existing models.ChatRoom
	err = h.db.Where("user_id = ? AND expert_id = ? AND status = ?",
		principal.UserID, createRequest.ExpertID, models.RoomActive).
		First(&existing).Error
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"chat_room_id": existing.ID,
		})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Error looking up chat room", http.StatusInternalServerError)
		return
	}

	room := models.ChatRoom{
		UserID:   principal.UserID,
		ExpertID: createRequest.ExpertID,
		Status:   models.RoomActive,
	}
	if err := h.db.Create(&room).Error; err != nil {
		if isDuplicateKeyError(err) {
			// Lost the race to a concurrent create; return the winner's room.
			if err := h.db.Where("user_id = ? AND expert_id = ? AND status = ?",
				principal.UserID, createRequest.ExpertID, models.RoomActive).
				First(&room).Error; err != nil {
				http.Error(w, "Error creating chat room", http.StatusInternalServerError)
				return
			}
		} else {
			http.Error(w, "Error creating chat room", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"chat_room_id": room.ID,
	})
}

// GetRooms lists the caller's rooms: experts see rooms where they are the
// expert, everyone else the rooms they opened. Ordered by latest activity.
func (h *ChatHandler) GetRooms(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := h.db.Model(&models.ChatRoom{}).Preload("User").Preload("Expert")
	if principal.Role == models.RoleExpert {
		query = query.Where("expert_id = ?", principal.UserID)
	} else {
		query = query.Where("user_id = ?", principal.UserID)
	}

	var rooms []models.ChatRoom
	if err := query.Order("updated_at desc").Find(&rooms).Error; err != nil {
		http.Error(w, "Error retrieving chat rooms", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"chat_rooms": rooms,
	})
}

func (h *ChatHandler) loadRoom(w http.ResponseWriter, r *http.Request) (*models.ChatRoom, bool) {
	vars := mux.Vars(r)
	roomID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid chat room ID", http.StatusBadRequest)
		return nil, false
	}

	var room models.ChatRoom
	if err := h.db.Preload("User").Preload("Expert").First(&room, roomID).Error; err != nil {
		http.Error(w, "Chat room not found", http.StatusNotFound)
		return nil, false
	}
	return &room, true
}

// GetMessages returns the full thread in ascending creation order, plus the
// room and whether a review exists. Clients poll this on a timer.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	decision := utils.Authorize(principal, utils.ActionAccessRoom, utils.Resource{
		UserID:   room.UserID,
		ExpertID: room.ExpertID,
	})
	if !decision.Allow {
		http.Error(w, decision.Reason, http.StatusForbidden)
		return
	}

	var messages []models.Message
	if err := h.db.Where("chat_room_id = ?", room.ID).
		Preload("Sender").
		Order("created_at asc").
		Find(&messages).Error; err != nil {
		http.Error(w, "Error retrieving messages", http.StatusInternalServerError)
		return
	}

	var reviewCount int64
	if err := h.db.Model(&models.Review{}).Where("chat_room_id = ?", room.ID).
		Count(&reviewCount).Error; err != nil {
		http.Error(w, "Error retrieving review status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"messages":   messages,
		"chat_room":  room,
		"has_review": reviewCount > 0,
	})
}

// PostMessage appends to an ACTIVE room. The receiver is always the other
// participant; subscribers get a socket event and the receiver a push.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	// Participation is decided before the room's status so an outsider gets
	// the same 403 here as on GetMessages, resolved or not.
	decision := utils.Authorize(principal, utils.ActionMessageRoom, utils.Resource{
		UserID:   room.UserID,
		ExpertID: room.ExpertID,
	})
	if !decision.Allow {
		http.Error(w, decision.Reason, http.StatusForbidden)
		return
	}

	if room.Status == models.RoomResolved {
		http.Error(w, "Chat room not found or resolved", http.StatusNotFound)
		return
	}

	var messageRequest struct {
		Content string `json:"content" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&messageRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.Validate.Struct(messageRequest); err != nil {
		http.Error(w, "Content is required", http.StatusBadRequest)
		return
	}

	message := models.Message{
		ChatRoomID: room.ID,
		SenderID:   principal.UserID,
		ReceiverID: room.OtherParticipant(principal.UserID),
		Content:    messageRequest.Content,
	}

	tx := h.db.Begin()

	if err := tx.Create(&message).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error saving message", http.StatusInternalServerError)
		return
	}

	// Bump the room so the rooms list sorts by latest activity.
	if err := tx.Model(&models.ChatRoom{}).Where("id = ?", room.ID).
		UpdateColumn("updated_at", time.Now()).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating chat room", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error saving message", http.StatusInternalServerError)
		return
	}

	h.db.Preload("Sender").First(&message, message.ID)

	h.broadcast(roomEvent{Type: "message", ChatRoomID: room.ID, Message: &message})

	if h.notifier != nil {
		go h.notifier.PushToUser(message.ReceiverID, "New message",
			messageRequest.Content, map[string]interface{}{
				"chat_room_id": room.ID,
			})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(message)
}

// ResolveRoom transitions ACTIVE -> RESOLVED. Only the room's expert may
// resolve; there is no path back to ACTIVE.
func (h *ChatHandler) ResolveRoom(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	decision := utils.Authorize(principal, utils.ActionResolveRoom, utils.Resource{
		UserID:   room.UserID,
		ExpertID: room.ExpertID,
	})
	if !decision.Allow {
		http.Error(w, decision.Reason, http.StatusForbidden)
		return
	}

	if room.Status != models.RoomResolved {
		if err := h.db.Model(room).Update("status", models.RoomResolved).Error; err != nil {
			http.Error(w, "Error resolving chat room", http.StatusInternalServerError)
			return
		}
		h.broadcast(roomEvent{Type: "resolved", ChatRoomID: room.ID})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(room)
}

// SubmitReview inserts the room's single review and folds the rating into
// the expert's aggregate in the same transaction. The aggregate update is a
// single UPDATE whose expressions read the pre-update row, so concurrent
// reviews of one expert cannot lose an update.
func (h *ChatHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	decision := utils.Authorize(principal, utils.ActionReviewRoom, utils.Resource{
		UserID:   room.UserID,
		ExpertID: room.ExpertID,
	})
	if !decision.Allow {
		http.Error(w, decision.Reason, http.StatusForbidden)
		return
	}

	if room.Status != models.RoomResolved {
		http.Error(w, "Chat room is not resolved yet", http.StatusConflict)
		return
	}

	var reviewRequest struct {
		Rating  int    `json:"rating" validate:"required,min=1,max=5"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reviewRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.Validate.Struct(reviewRequest); err != nil {
		http.Error(w, "Rating must be between 1 and 5", http.StatusBadRequest)
		return
	}

	review := models.Review{
		ChatRoomID: room.ID,
		UserID:     principal.UserID,
		ExpertID:   room.ExpertID,
		Rating:     reviewRequest.Rating,
		Comment:    reviewRequest.Comment,
	}

	tx := h.db.Begin()

	if err := tx.Create(&review).Error; err != nil {
		tx.Rollback()
		if isDuplicateKeyError(err) {
			http.Error(w, "This chat room has already been reviewed", http.StatusConflict)
			return
		}
		http.Error(w, "Error creating review", http.StatusInternalServerError)
		return
	}

	if err := tx.Model(&models.User{}).Where("id = ?", room.ExpertID).
		UpdateColumns(map[string]interface{}{
			"rating":        gorm.Expr("(rating * total_ratings + ?) / (total_ratings + 1)", float64(reviewRequest.Rating)),
			"total_ratings": gorm.Expr("total_ratings + 1"),
			"total_reviews": gorm.Expr("total_reviews + 1"),
		}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error updating expert rating", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error saving review", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(review)
}

// HandleRoomSocket upgrades the connection and subscribes it to the room's
// event stream.
func (h *ChatHandler) HandleRoomSocket(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	room, ok := h.loadRoom(w, r)
	if !ok {
		return
	}

	decision := utils.Authorize(principal, utils.ActionAccessRoom, utils.Resource{
		UserID:   room.UserID,
		ExpertID: room.ExpertID,
	})
	if !decision.Allow {
		http.Error(w, decision.Reason, http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &ws.Client{
		Hub:    h.hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: principal.UserID,
		RoomID: room.ID,
	}

	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (h *ChatHandler) broadcast(event roomEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("error marshaling room event: %v", err)
		return
	}
	h.hub.BroadcastToRoom(event.ChatRoomID, payload)
}
