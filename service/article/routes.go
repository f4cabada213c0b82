package article

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/andikasp/ParentCare-server/cmd/models"
	"github.com/andikasp/ParentCare-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type PostHandler struct {
	db *gorm.DB
}

func NewPostHandler(db *gorm.DB) *PostHandler {
	return &PostHandler{db: db}
}

func (h *PostHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/posts", utils.AuthMiddleware(h.CreatePost)).Methods("POST")
	router.HandleFunc("/posts", h.GetPosts).Methods("GET")
	router.HandleFunc("/posts/{id}", h.GetPost).Methods("GET")
	router.HandleFunc("/posts/{id}", utils.AuthMiddleware(h.DeletePost)).Methods("DELETE")
	router.HandleFunc("/posts/{id}/comments", utils.AuthMiddleware(h.AddComment)).Methods("POST")
	router.HandleFunc("/posts/{id}/comments", h.GetComments).Methods("GET")
	router.HandleFunc("/upload/image", utils.AuthMiddleware(h.UploadImage)).Methods("POST")
}

// CreatePost publishes an article. Admins and experts only.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	decision := utils.Authorize(principal, utils.ActionPublishPost, utils.Resource{})
	if !decision.Allow {
		http.Error(w, decision.Reason, http.StatusForbidden)
		return
	}

	var postRequest struct {
		Title   string   `json:"title" validate:"required"`
		Content string   `json:"content" validate:"required"`
		Image   string   `json:"image"`
		Tags    []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&postRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.Validate.Struct(postRequest); err != nil {
		http.Error(w, "Title and content are required", http.StatusBadRequest)
		return
	}

	post := models.Post{
		AuthorID: principal.UserID,
		Title:    postRequest.Title,
		Content:  postRequest.Content,
		Image:    postRequest.Image,
		Tags:     postRequest.Tags,
	}

	if err := h.db.Create(&post).Error; err != nil {
		http.Error(w, "Error creating post", http.StatusInternalServerError)
		return
	}

	h.db.Preload("Author").First(&post, post.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(post)
}

// GetPosts lists articles newest first with author info and comment counts.
func (h *PostHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 10

	var posts []models.Post
	var total int64

	query := h.db.Model(&models.Post{}).Preload("Author")
	query.Count(&total)

	if err := query.Order("created_at desc").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error; err != nil {
		http.Error(w, "Error retrieving posts", http.StatusInternalServerError)
		return
	}

	response := make([]map[string]interface{}, 0, len(posts))
	for _, post := range posts {
		var commentCount int64
		h.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&commentCount)
		response = append(response, map[string]interface{}{
			"post":          post,
			"comment_count": commentCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"posts":       response,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetPost returns an article with its comments, newest comment first.
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	var post models.Post
	if err := h.db.Preload("Author").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at desc")
		}).
		Preload("Comments.Author").
		First(&post, postID).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(post)
}

// DeletePost removes an article. Stored image cleanup is best-effort: a
// failed delete is logged and the request still succeeds.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	var post models.Post
	if err := h.db.First(&post, postID).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	decision := utils.Authorize(principal, utils.ActionDeletePost, utils.Resource{
		OwnerID: post.AuthorID,
	})
	if !decision.Allow {
		http.Error(w, decision.Reason, http.StatusForbidden)
		return
	}

	tx := h.db.Begin()

	if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting comments", http.StatusInternalServerError)
		return
	}

	if err := tx.Delete(&post).Error; err != nil {
		tx.Rollback()
		http.Error(w, "Error deleting post", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit().Error; err != nil {
		http.Error(w, "Error deleting post", http.StatusInternalServerError)
		return
	}

	if post.Image != "" {
		if err := utils.DeleteImage(post.Image); err != nil {
			log.Printf("error deleting image for post %d: %v", post.ID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Post deleted successfully",
	})
}

// AddComment appends a comment to an article.
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	principal, err := utils.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	var commentRequest struct {
		Content string `json:"content" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&commentRequest); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.Validate.Struct(commentRequest); err != nil {
		http.Error(w, "Content is required", http.StatusBadRequest)
		return
	}

	var post models.Post
	if err := h.db.First(&post, postID).Error; err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	comment := models.Comment{
		AuthorID: principal.UserID,
		PostID:   uint(postID),
		Content:  commentRequest.Content,
	}

	if err := h.db.Create(&comment).Error; err != nil {
		http.Error(w, "Error creating comment", http.StatusInternalServerError)
		return
	}

	h.db.Preload("Author").First(&comment, comment.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(comment)
}

// GetComments retrieves comments for an article with pagination.
func (h *PostHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 10

	var comments []models.Comment
	var total int64

	query := h.db.Model(&models.Comment{}).Where("post_id = ?", postID).Preload("Author")
	query.Count(&total)

	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("created_at desc").Find(&comments).Error; err != nil {
		http.Error(w, "Error retrieving comments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"comments":    comments,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// UploadImage stores a multipart image and returns its URL. The caller
// treats storage as an opaque URL-returning service.
func (h *PostHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if _, err := utils.GetPrincipal(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(utils.MaxImageSize); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	imageURL, err := utils.SaveImage(file, header)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"url": imageURL,
	})
}
