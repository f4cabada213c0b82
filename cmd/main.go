package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/andikasp/ParentCare-server/cmd/api"
	"github.com/andikasp/ParentCare-server/cmd/models"
	"github.com/andikasp/ParentCare-server/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations()
			return
		case "seed":
			runSeed()
			return
		case "clear-db":
			runDatabaseClear()
			return
		default:
			log.Fatalf("Unknown command: %s", os.Args[1])
		}
	}

	startServer()
}

func openDB() *gorm.DB {
	DB, err := db.NewPSQLStorage()
	if err != nil {
		log.Fatalf("Database initialization error: %v", err)
	}
	return DB
}

func closeDB(DB *gorm.DB) {
	sqlDB, _ := DB.DB()
	sqlDB.Close()
	log.Println("Database connection closed")
}

func runMigrations() {
	DB := openDB()
	defer closeDB(DB)
	log.Println("Connected to the database for migrations")

	if err := performMigrations(DB); err != nil {
		log.Fatalf("Migration error: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func performMigrations(DB *gorm.DB) error {
	migrations := []struct {
		model interface{}
		name  string
	}{
		{&models.User{}, "User"},
		{&models.PasswordResetToken{}, "PasswordResetToken"},
		{&models.Post{}, "Post"},
		{&models.Comment{}, "Comment"},
		{&models.Thread{}, "Thread"},
		{&models.ForumComment{}, "ForumComment"},
		{&models.ForumLike{}, "ForumLike"},
		{&models.ChatRoom{}, "ChatRoom"},
		{&models.Message{}, "Message"},
		{&models.Review{}, "Review"},
		{&models.Device{}, "Device"},
		{&models.NotificationHistory{}, "NotificationHistory"},
	}

	log.Println("Starting database migrations...")
	for _, migration := range migrations {
		log.Printf("Migrating %s table...", migration.name)
		if err := DB.AutoMigrate(migration.model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", migration.name, err)
		}
	}

	if err := createDirectoryIfNotExist("uploads/images"); err != nil {
		return err
	}
	log.Println("Directory uploads/images created/verified")

	log.Println("All migrations and directory setup completed successfully")
	return nil
}

func createDirectoryIfNotExist(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("could not create directory %s: %w", path, err)
		}
	}
	return nil
}

// runSeed creates the initial admin account if none exists.
func runSeed() {
	DB := openDB()
	defer closeDB(DB)

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@admin.com"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	var existing models.User
	if err := DB.Where("email = ?", email).First(&existing).Error; err == nil {
		log.Printf("Admin account %s already exists, skipping seed", email)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Error hashing admin password: %v", err)
	}

	admin := models.User{
		Name:         "Admin",
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         models.RoleAdmin,
	}
	if err := DB.Create(&admin).Error; err != nil {
		log.Fatalf("Error seeding admin account: %v", err)
	}

	log.Printf("Admin account %s created", email)
}

func startServer() {
	DB := openDB()
	defer closeDB(DB)
	log.Println("Connected to the database")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	server := api.NewApiServer(":"+port, DB)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Printf("Server running on port %s", port)

	<-quit
	log.Println("Shutting down server...")
}

func runDatabaseClear() {
	DB := openDB()
	defer closeDB(DB)

	log.Println("Preparing to clear database...")

	var confirmation string
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	fmt.Scanln(&confirmation)

	if confirmation != "yes" {
		log.Println("Database clearing cancelled.")
		return
	}

	tables := []interface{}{
		&models.NotificationHistory{},
		&models.Device{},
		&models.Review{},
		&models.Message{},
		&models.ChatRoom{},
		&models.ForumLike{},
		&models.ForumComment{},
		&models.Thread{},
		&models.Comment{},
		&models.Post{},
		&models.PasswordResetToken{},
		&models.User{},
	}

	log.Println("Dropping tables...")
	for _, table := range tables {
		if err := DB.Migrator().DropTable(table); err != nil {
			log.Printf("Warning dropping table %T: %v", table, err)
		} else {
			log.Printf("Table %T dropped", table)
		}
	}

	log.Println("Database cleared successfully")
}
