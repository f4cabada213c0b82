package api

import (
	"log"
	"net/http"
	"os"

	"github.com/andikasp/ParentCare-server/service/article"
	"github.com/andikasp/ParentCare-server/service/chat"
	"github.com/andikasp/ParentCare-server/service/forum"
	"github.com/andikasp/ParentCare-server/service/notification"
	"github.com/andikasp/ParentCare-server/service/user"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	articleHandler := article.NewPostHandler(s.db)
	articleHandler.RegisterRoutes(subrouter)

	forumHandler := forum.NewForumHandler(s.db)
	forumHandler.RegisterRoutes(subrouter)

	// The notification handler doubles as the chat service's push sink.
	notificationHandler := notification.NewNotificationHandler(s.db)
	notificationHandler.RegisterRoutes(subrouter)

	chatHandler := chat.NewChatHandler(s.db, notificationHandler)
	chatHandler.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, handlers.LoggingHandler(os.Stdout, cors(router)))
}
