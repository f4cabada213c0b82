package notification

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
		&models.Device{},
		&models.NotificationHistory{},
	))

	return db
}

func newTestRouter(db *gorm.DB) *mux.Router {
	h := NewNotificationHandler(db)
	router := mux.NewRouter()
	router.HandleFunc("/devices", h.RegisterDevice).Methods("POST")
	router.HandleFunc("/devices/{id}", h.DeleteDevice).Methods("DELETE")
	router.HandleFunc("/users/{userId}/devices", h.GetUserDevices).Methods("GET")
	router.HandleFunc("/users/{userId}/notifications", h.GetUserNotificationHistory).Methods("GET")
	return router
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

func TestRegisterDeviceValidatesTokenFormat(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	p := utils.Principal{UserID: 1, Role: models.RoleUser}

	rr := doRequest(router, "POST", "/devices", p, map[string]string{
		"token": "not-an-expo-token",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(router, "POST", "/devices", p, map[string]string{
		"token":       "ExponentPushToken[abc123]",
		"device_type": "ios",
		"device_name": "iPhone",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	// Registering the same token again updates instead of duplicating.
	rr = doRequest(router, "POST", "/devices", p, map[string]string{
		"token":       "ExponentPushToken[abc123]",
		"device_type": "ios",
		"device_name": "iPhone 15",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var count int64
	db.Model(&models.Device{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var device models.Device
	require.NoError(t, db.First(&device).Error)
	assert.Equal(t, "iPhone 15", device.DeviceName)
	assert.Equal(t, uint(1), device.UserID)
}

func TestGetUserDevicesScopedToOwnerOrAdmin(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	require.NoError(t, db.Create(&models.Device{
		Token: "ExponentPushToken[abc123]", UserID: 1, DeviceType: "ios",
	}).Error)

	rr := doRequest(router, "GET", "/users/1/devices",
		utils.Principal{UserID: 2, Role: models.RoleUser}, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(router, "GET", "/users/1/devices",
		utils.Principal{UserID: 1, Role: models.RoleUser}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var devices []models.Device
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &devices))
	assert.Len(t, devices, 1)

	rr = doRequest(router, "GET", "/users/1/devices",
		utils.Principal{UserID: 99, Role: models.RoleAdmin}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDeleteDeviceOnlyOwn(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	device := models.Device{Token: "ExponentPushToken[abc123]", UserID: 1}
	require.NoError(t, db.Create(&device).Error)

	rr := doRequest(router, "DELETE", fmt.Sprintf("/devices/%d", device.ID),
		utils.Principal{UserID: 2, Role: models.RoleUser}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(router, "DELETE", fmt.Sprintf("/devices/%d", device.ID),
		utils.Principal{UserID: 1, Role: models.RoleUser}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var count int64
	db.Model(&models.Device{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestPushToUserWithoutDevicesIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	h := NewNotificationHandler(db)

	h.PushToUser(42, "New message", "hello", map[string]interface{}{"chat_room_id": 1})

	var count int64
	db.Model(&models.NotificationHistory{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
