package models

import (
	"time"
)

// PageCache holds one cached snapshot of a Notion page's block children.
// ContentJSON is passed through opaquely but must be valid JSON.
// LastFetchedAt is stored in UTC; freshness comparison normalizes at the
// store boundary so the sqlite/postgres timestamp dialects agree.
type PageCache struct {
	PageID        string    `gorm:"primaryKey"`
	NotionUserID  string    `gorm:"not null"`
	ContentJSON   string    `gorm:"not null"`
	LastFetchedAt time.Time `gorm:"not null"`
}

func (PageCache) TableName() string {
	return "page_caches"
}
