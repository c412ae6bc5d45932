package services

import (
	"time"

	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StateTTL is how long an unconsumed OAuth state token stays valid before
// the periodic sweep removes it.
const StateTTL = 10 * time.Minute

// StateService manages the single-use anti-CSRF state tokens for the OAuth
// flow. Tokens are issued when the authorization URL is built and consumed
// exactly once on callback.
type StateService interface {
	// Issue generates a random state token and persists it.
	Issue() (string, error)
	// Consume atomically deletes the token, failing with ErrInvalidState if
	// it was never issued or was already used. Only one of N concurrent
	// consumers can succeed.
	Consume(token string) error
	// Sweep deletes tokens older than the given age and reports how many.
	Sweep(olderThan time.Duration) (int64, error)
}

type stateService struct {
	db *gorm.DB
}

// NewStateService creates a new instance of StateService
func NewStateService(db *gorm.DB) StateService {
	return &stateService{db: db}
}

func (s *stateService) Issue() (string, error) {
	state := &models.OAuthState{
		Token:     uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Create(state).Error; err != nil {
		return "", err
	}
	return state.Token, nil
}

func (s *stateService) Consume(token string) error {
	// Single DELETE, so the check-and-delete is atomic at the database.
	result := s.db.Where("token = ?", token).Delete(&models.OAuthState{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrInvalidState
	}
	return nil
}

func (s *stateService) Sweep(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.OAuthState{})
	return result.RowsAffected, result.Error
}
