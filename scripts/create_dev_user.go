package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"github.com/gizaguri/notion-memo-gateway/internal/secrets"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seeds a development credential so the memo endpoints can be exercised
// without walking the full OAuth flow. The token is encrypted with the same
// codec the gateway uses, so ENCRYPTION_KEY must match the running server.
func main() {
	userID := flag.String("user-id", "dev-user", "Notion user ID to seed")
	token := flag.String("token", "", "Plaintext Notion access token (required)")
	workspace := flag.String("workspace", "Dev Workspace", "Workspace display name")
	dbPath := flag.String("db", "gateway.sqlite", "Path to the gateway SQLite database")
	flag.Parse()

	if *token == "" {
		log.Fatal("-token is required")
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		log.Fatal("ENCRYPTION_KEY environment variable is required")
	}

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatal("Failed to migrate schema:", err)
	}

	encrypted, err := secrets.NewCodec(encryptionKey).Encrypt(*token)
	if err != nil {
		log.Fatal("Failed to encrypt token:", err)
	}

	user := &models.User{
		NotionUserID:         *userID,
		EncryptedAccessToken: encrypted,
		WorkspaceName:        *workspace,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "notion_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_access_token", "workspace_name", "updated_at"}),
	}).Create(user).Error; err != nil {
		log.Fatal("Failed to create user:", err)
	}

	fmt.Printf("✓ Development credential created!\n")
	fmt.Printf("User ID: %s\n", *userID)
	fmt.Printf("Workspace: %s\n", *workspace)
	fmt.Println("\nTry it:")
	fmt.Printf("curl 'http://localhost:8080/get-pages?user_id=%s'\n", *userID)
}
