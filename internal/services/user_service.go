package services

import (
	"errors"
	"time"

	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserService is the credential store: one row per Notion user identity,
// holding the encrypted token pair written on each successful OAuth
// callback and read on every upstream call.
type UserService interface {
	// Get loads the credential row, mapping absence to ErrUserNotFound.
	Get(notionUserID string) (*models.User, error)
	// Upsert inserts or overwrites the row keyed on notionUserID. Repeated
	// re-authorizations land on the same row.
	Upsert(notionUserID, encryptedAccessToken string, encryptedRefreshToken *string, workspaceName string) error
}

type userService struct {
	db *gorm.DB
}

// NewUserService creates a new instance of UserService
func NewUserService(db *gorm.DB) UserService {
	return &userService{db: db}
}

func (s *userService) Get(notionUserID string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("notion_user_id = ?", notionUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *userService) Upsert(notionUserID, encryptedAccessToken string, encryptedRefreshToken *string, workspaceName string) error {
	user := &models.User{
		NotionUserID:          notionUserID,
		EncryptedAccessToken:  encryptedAccessToken,
		EncryptedRefreshToken: encryptedRefreshToken,
		WorkspaceName:         workspaceName,
		UpdatedAt:             time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "notion_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"encrypted_access_token",
			"encrypted_refresh_token",
			"workspace_name",
			"updated_at",
		}),
	}).Create(user).Error
}
