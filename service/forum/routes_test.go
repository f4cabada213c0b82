package forum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andikasp/ParentCare-server/cmd/models"
	"github.com/andikasp/ParentCare-server/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Thread{},
		&models.ForumComment{},
		&models.ForumLike{},
	))

	return db
}

func newTestRouter(db *gorm.DB) *mux.Router {
	h := NewForumHandler(db)
	router := mux.NewRouter()
	router.HandleFunc("/forum/threads", h.CreateThread).Methods("POST")
	router.HandleFunc("/forum/threads", h.GetThreads).Methods("GET")
	router.HandleFunc("/forum/threads/{id}", h.GetThread).Methods("GET")
	router.HandleFunc("/forum/threads/{id}", h.DeleteThread).Methods("DELETE")
	router.HandleFunc("/forum/comments", h.AddComment).Methods("POST")
	router.HandleFunc("/forum/comments/{id}/like", h.SetReaction).Methods("POST")
	return router
}

func createTestUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@example.com", name, t.Name()),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func doRequest(router *mux.Router, method, path string, p utils.Principal, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req = utils.WithPrincipal(req, p)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func principalFor(u models.User) utils.Principal {
	return utils.Principal{UserID: u.ID, Role: u.Role}
}

func createThreadWithComment(t *testing.T, db *gorm.DB, author models.User) models.ForumComment {
	t.Helper()
	thread := models.Thread{
		AuthorID: author.ID,
		Title:    "Sleep training",
		Content:  "How do you handle night wakings?",
		Category: models.CategoryKesehatan,
	}
	require.NoError(t, db.Create(&thread).Error)

	comment := models.ForumComment{
		AuthorID: author.ID,
		ThreadID: thread.ID,
		Content:  "We used a gradual approach.",
	}
	require.NoError(t, db.Create(&comment).Error)
	return comment
}

func reactionRows(t *testing.T, db *gorm.DB, userID, commentID uint) []models.ForumLike {
	t.Helper()
	var rows []models.ForumLike
	require.NoError(t, db.Unscoped().
		Where("user_id = ? AND comment_id = ?", userID, commentID).
		Find(&rows).Error)
	return rows
}

func TestSetReactionCreatesOnFirstToggle(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	author := createTestUser(t, db, "author", models.RoleUser)
	reader := createTestUser(t, db, "reader", models.RoleUser)
	comment := createThreadWithComment(t, db, author)

	rr := doRequest(router, "POST", fmt.Sprintf("/forum/comments/%d/like", comment.ID),
		principalFor(reader), map[string]string{"type": models.ReactionLike})
	require.Equal(t, http.StatusOK, rr.Code)

	rows := reactionRows(t, db, reader.ID, comment.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ReactionLike, rows[0].Type)
}

func TestSetReactionSameTypeRemoves(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	author := createTestUser(t, db, "author", models.RoleUser)
	reader := createTestUser(t, db, "reader", models.RoleUser)
	comment := createThreadWithComment(t, db, author)

	path := fmt.Sprintf("/forum/comments/%d/like", comment.ID)
	body := map[string]string{"type": models.ReactionLike}

	rr := doRequest(router, "POST", path, principalFor(reader), body)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(router, "POST", path, principalFor(reader), body)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Empty(t, reactionRows(t, db, reader.ID, comment.ID))
}

func TestSetReactionOppositeTypeFlips(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	author := createTestUser(t, db, "author", models.RoleUser)
	reader := createTestUser(t, db, "reader", models.RoleUser)
	comment := createThreadWithComment(t, db, author)

	path := fmt.Sprintf("/forum/comments/%d/like", comment.ID)

	rr := doRequest(router, "POST", path, principalFor(reader),
		map[string]string{"type": models.ReactionLike})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(router, "POST", path, principalFor(reader),
		map[string]string{"type": models.ReactionDislike})
	require.Equal(t, http.StatusOK, rr.Code)

	rows := reactionRows(t, db, reader.ID, comment.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ReactionDislike, rows[0].Type)
}

func TestSetReactionAnySequenceLeavesAtMostOneRow(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	author := createTestUser(t, db, "author", models.RoleUser)
	reader := createTestUser(t, db, "reader", models.RoleUser)
	comment := createThreadWithComment(t, db, author)

	path := fmt.Sprintf("/forum/comments/%d/like", comment.ID)
	sequence := []string{
		models.ReactionLike,
		models.ReactionDislike,
		models.ReactionDislike, // removed
		models.ReactionDislike, // recreated
		models.ReactionLike,    // flipped
	}

	for i, reaction := range sequence {
		rr := doRequest(router, "POST", path, principalFor(reader),
			map[string]string{"type": reaction})
		require.Equalf(t, http.StatusOK, rr.Code, "toggle %d", i)

		rows := reactionRows(t, db, reader.ID, comment.ID)
		assert.LessOrEqualf(t, len(rows), 1, "toggle %d", i)
	}

	rows := reactionRows(t, db, reader.ID, comment.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ReactionLike, rows[0].Type)
}

func TestSetReactionRejectsUnknownType(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	author := createTestUser(t, db, "author", models.RoleUser)
	comment := createThreadWithComment(t, db, author)

	rr := doRequest(router, "POST", fmt.Sprintf("/forum/comments/%d/like", comment.ID),
		principalFor(author), map[string]string{"type": "LOVE"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateThreadValidatesCategory(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	author := createTestUser(t, db, "author", models.RoleUser)

	rr := doRequest(router, "POST", "/forum/threads", principalFor(author),
		map[string]string{"title": "Hi", "content": "Body", "category": "NOPE"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(router, "POST", "/forum/threads", principalFor(author),
		map[string]string{"title": "Hi", "content": "Body", "category": models.CategoryUmum})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestGetThreadsFiltersByCategory(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	author := createTestUser(t, db, "author", models.RoleUser)

	for _, category := range []string{models.CategoryKesehatan, models.CategoryKesehatan, models.CategoryEdukasi} {
		require.NoError(t, db.Create(&models.Thread{
			AuthorID: author.ID,
			Title:    "t",
			Content:  "c",
			Category: category,
		}).Error)
	}

	rr := doRequest(router, "GET", "/forum/threads?category="+models.CategoryKesehatan,
		principalFor(author), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Threads []map[string]interface{} `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Threads, 2)
}

func TestDeleteThreadAdminOnly(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	author := createTestUser(t, db, "author", models.RoleUser)
	admin := createTestUser(t, db, "admin", models.RoleAdmin)
	comment := createThreadWithComment(t, db, author)

	rr := doRequest(router, "POST", fmt.Sprintf("/forum/comments/%d/like", comment.ID),
		principalFor(author), map[string]string{"type": models.ReactionLike})
	require.Equal(t, http.StatusOK, rr.Code)

	path := fmt.Sprintf("/forum/threads/%d", comment.ThreadID)

	rr = doRequest(router, "DELETE", path, principalFor(author), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(router, "DELETE", path, principalFor(admin), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var threadCount, commentCount int64
	db.Model(&models.Thread{}).Count(&threadCount)
	db.Model(&models.ForumComment{}).Count(&commentCount)
	assert.Equal(t, int64(0), threadCount)
	assert.Equal(t, int64(0), commentCount)
}
