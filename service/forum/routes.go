package forum

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/andikasp/ParentCare-server/cmd/models"
	"github.com/andikasp/ParentCare-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type ForumHandler struct {
	db *gorm.DB
}

func NewForumHandler(db *gorm.DB) *ForumHandler {
	return &ForumHandler{db: db}
}

func (h *ForumHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/forum/threads", utils.AuthMiddleware(h.CreateThread)).Methods("POST")
	router.HandleFunc("/forum/threads", h.GetThreads).Methods("GET")
	router.HandleFunc("/forum/threads/{id}", h.GetThread).Methods("GET")
	router.HandleFunc("/forum/threads/{id}", utils.AuthMiddleware(h.DeleteThread)).Methods("DELETE")
	router.HandleFunc("/forum/comments", utils.AuthMiddleware(h.AddComment)).Methods("POST")
	router.HandleFunc("/forum/comments/{id}/like", utils.AuthMiddleware(h.SetReaction)).Methods("POST")
}

// CreateThread opens a new discussion thread.
func (h *ForumHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var threadRequest struct {
		Title    string `json:"title" validate:"required"`
		Content  string `json:"content" validate:"required"`
		Category string `json:"category" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&threadRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.Validate.Struct(threadRequest); err != nil {
		http.Error(w, "Title, content and category are required", http.StatusBadRequest)
		return
	}
	if !models.ValidCategory(threadRequest.Category) {
		http.Error(w, "Invalid category", http.StatusBadRequest)
		return
	}

	thread := models.Thread{
		AuthorID: principal.UserID,
		Title:    threadRequest.Title,
		Content:  threadRequest.Content,
		Category: threadRequest.Category,
	}

	if err := h.db.Create(&thread).Error; err != nil {
		http.Error(w, "Error creating thread", http.StatusInternalServerError)
		return
	}

	h.db.Preload("Author").First(&thread, thread.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Thread created successfully",
		"thread":  thread,
	})
}

// GetThreads lists threads newest first, optionally filtered by category,
// with comment counts for the index page.
func (h *ForumHandler) GetThreads(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	query := h.db.Model(&models.Thread{}).Preload("Author")
	if category != "" && models.ValidCategory(category) {
		query = query.Where("category = ?", category)
	}

	var threads []models.Thread
	if err := query.Order("created_at desc").Find(&threads).Error; err != nil {
		http.Error(w, "Error retrieving threads", http.StatusInternalServerError)
		return
	}

	response := make([]map[string]interface{}, 0, len(threads))
	for _, thread := range threads {
		var commentCount int64
		h.db.Model(&models.ForumComment{}).Where("thread_id = ?", thread.ID).Count(&commentCount)
		response = append(response, map[string]interface{}{
			"thread":        thread,
			"comment_count": commentCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"threads": response,
	})
}

// GetThread returns a thread with its comments, each carrying like counts.
func (h *ForumHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	threadID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid thread ID", http.StatusBadRequest)
		return
	}

	var thread models.Thread
	if err := h.db.Preload("Author").
		Preload("Comments.Author").
		Preload("Comments.Likes").
		First(&thread, threadID).Error; err != nil {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	comments := make([]map[string]interface{}, 0, len(thread.Comments))
	for _, comment := range thread.Comments {
		var likeCount int64
		for _, like := range comment.Likes {
			if like.Type == models.ReactionLike {
				likeCount++
			}
		}
		comments = append(comments, map[string]interface{}{
			"comment":    comment,
			"like_count": likeCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"thread":   thread,
		"comments": comments,
	})
}

// DeleteThread removes a thread and its comment tree. Admin only.
func (h *ForumHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	decision := utils.Authorize(principal, utils.ActionDeleteThread, utils.Resource{})
	if !decision.Allow {
		http.Error(w, decision.Reason, http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	threadID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid thread ID", http.StatusBadRequest)
		return
	}

	var thread models.Thread
	if err := h.db.First(&thread, threadID).Error; err != nil {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	tx := h.db.Begin()

	if err := tx.Where("comment_id IN (?)",
		tx.Model(&models.ForumComment{}).Select("id").Where("thread_id = ?", threadID),
	).Delete(&models.ForumLike{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting likes", http.StatusInternalServerError)
		return
	}

	if err := tx.Where("thread_id = ?", threadID).Delete(&models.ForumComment{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting comments", http.StatusInternalServerError)
		return
	}

	if err := tx.Delete(&thread).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting thread", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error deleting thread", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Thread deleted successfully",
	})
}

// AddComment appends a comment to a thread.
func (h *ForumHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var commentRequest struct {
		Content  string `json:"content" validate:"required"`
		ThreadID uint   `json:"thread_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&commentRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.Validate.Struct(commentRequest); err != nil {
		http.Error(w, "Content and thread_id are required", http.StatusBadRequest)
		return
	}

	var thread models.Thread
	if err := h.db.First(&thread, commentRequest.ThreadID).Error; err != nil {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	comment := models.ForumComment{
		AuthorID: principal.UserID,
		ThreadID: commentRequest.ThreadID,
		Content:  commentRequest.Content,
	}

	if err := h.db.Create(&comment).Error; err != nil {
		http.Error(w, "Error creating comment", http.StatusInternalServerError)
		return
	}

	h.db.Preload("Author").First(&comment, comment.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Comment added successfully",
		"comment": comment,
	})
}

// SetReaction applies the three-way toggle: no reaction creates one, the
// same reaction removes it, the opposite reaction flips the type in place.
// The unique index on (user_id, comment_id) keeps it to one row throughout.
func (h *ForumHandler) SetReaction(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	commentID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid comment ID", http.StatusBadRequest)
		return
	}

	var reactionRequest struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reactionRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if reactionRequest.Type != models.ReactionLike && reactionRequest.Type != models.ReactionDislike {
		http.Error(w, "Type must be LIKE or DISLIKE", http.StatusBadRequest)
		return
	}

	var comment models.ForumComment
	if err := h.db.First(&comment, commentID).Error; err != nil {
		http.Error(w, "Comment not found", http.StatusNotFound)
		return
	}

	tx := h.db.Begin()

	var existing models.ForumLike
	err = tx.Where("user_id = ? AND comment_id = ?", principal.UserID, commentID).
		First(&existing).Error

	switch {
	case err == nil && existing.Type == reactionRequest.Type:
		if err := tx.Unscoped().Delete(&existing).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error removing reaction", http.StatusInternalServerError)
			return
		}
		tx.Commit()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Reaction removed"})
		return

	case err == nil:
		if err := tx.Model(&existing).Update("type", reactionRequest.Type).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error updating reaction", http.StatusInternalServerError)
			return
		}
		tx.Commit()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Reaction updated"})
		return

	case errors.Is(err, gorm.ErrRecordNotFound):
		reaction := models.ForumLike{
			UserID:    principal.UserID,
			CommentID: uint(commentID),
			Type:      reactionRequest.Type,
		}
		if err := tx.Create(&reaction).Error; err != nil {
			tx.Rollback()
			http.Error(w, "Error adding reaction", http.StatusInternalServerError)
			return
		}
		tx.Commit()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Reaction added"})
		return

	default:
		tx.Rollback()
		http.Error(w, "Error looking up reaction", http.StatusInternalServerError)
		return
	}
}
