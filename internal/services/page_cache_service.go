package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"github.com/gizaguri/notion-memo-gateway/internal/secrets"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheTTL bounds how stale a cached page may be before a read triggers a
// background revalidation.
const CacheTTL = 5 * time.Minute

// revalidateTimeout caps each background refresh so a hung upstream cannot
// pin goroutines forever.
const revalidateTimeout = 30 * time.Second

// PageFetcher is the slice of the Notion client the cache needs.
type PageFetcher interface {
	BlockChildren(ctx context.Context, accessToken, blockID string) (json.RawMessage, error)
}

// PageCacheService is a read-through cache over Notion page content with
// stale-while-revalidate semantics: fresh hits return immediately, stale
// hits return the cached snapshot and refresh in the background, misses
// fetch synchronously.
type PageCacheService interface {
	// ReadThrough returns the page content for pageID, fetching with the
	// given user's credential on a miss.
	ReadThrough(ctx context.Context, pageID, notionUserID string) (json.RawMessage, error)
	// Invalidate drops the cache entry so the next read refetches. Called
	// after every successful write to the page.
	Invalidate(pageID string) error
}

type pageCacheService struct {
	db      *gorm.DB
	users   UserService
	codec   *secrets.Codec
	fetcher PageFetcher
}

// NewPageCacheService creates a new instance of PageCacheService
func NewPageCacheService(db *gorm.DB, users UserService, codec *secrets.Codec, fetcher PageFetcher) PageCacheService {
	return &pageCacheService{db: db, users: users, codec: codec, fetcher: fetcher}
}

func (s *pageCacheService) ReadThrough(ctx context.Context, pageID, notionUserID string) (json.RawMessage, error) {
	var entry models.PageCache
	err := s.db.Where("page_id = ?", pageID).First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cache lookup: %w", err)
		}
		// Miss: the caller pays for the fetch, and a failed fetch leaves no
		// cache entry behind.
		return s.fetchAndStore(ctx, pageID, notionUserID)
	}

	// Stored timestamps are UTC; normalize before subtracting so the
	// sqlite dialect's naive representation cannot shift the TTL.
	age := time.Since(entry.LastFetchedAt.UTC())
	if age <= CacheTTL {
		return json.RawMessage(entry.ContentJSON), nil
	}

	// Stale: serve the snapshot now, refresh behind the response. The
	// goroutine gets its own context so finishing the request does not
	// cancel the refresh.
	go s.revalidate(pageID, notionUserID)

	return json.RawMessage(entry.ContentJSON), nil
}

func (s *pageCacheService) Invalidate(pageID string) error {
	return s.db.Where("page_id = ?", pageID).Delete(&models.PageCache{}).Error
}

// fetchAndStore fetches the page with the user's decrypted credential and
// upserts the cache entry.
func (s *pageCacheService) fetchAndStore(ctx context.Context, pageID, notionUserID string) (json.RawMessage, error) {
	user, err := s.users.Get(notionUserID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.codec.Decrypt(user.EncryptedAccessToken)
	if err != nil {
		return nil, err
	}

	content, err := s.fetcher.BlockChildren(ctx, accessToken, pageID)
	if err != nil {
		return nil, err
	}

	entry := &models.PageCache{
		PageID:        pageID,
		NotionUserID:  notionUserID,
		ContentJSON:   string(content),
		LastFetchedAt: time.Now().UTC(),
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "page_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"notion_user_id", "content_json", "last_fetched_at"}),
	}).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("store cache entry: %w", err)
	}

	return content, nil
}

// revalidate refreshes one stale entry. Failures are logged and leave the
// existing entry untouched; the next read past the TTL tries again.
func (s *pageCacheService) revalidate(pageID, notionUserID string) {
	ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
	defer cancel()

	if _, err := s.fetchAndStore(ctx, pageID, notionUserID); err != nil {
		log.WithFields(log.Fields{
			"page_id": pageID,
			"user_id": notionUserID,
			"error":   err.Error(),
		}).Warn("Background cache revalidation failed")
		return
	}

	log.WithField("page_id", pageID).Debug("Cache entry revalidated")
}
