package entities

import (
	"time"

	"github.com/google/uuid"
)

// ExplorerEventType represents the type of explorer cache event
type ExplorerEventType string

const (
	// ExplorerEventPageCached is published after a result page is upserted
	ExplorerEventPageCached    ExplorerEventType = "page_cached"
	// ExplorerEventSearchExpired is published when an expired search row is purged
	ExplorerEventSearchExpired ExplorerEventType = "search_expired"
)

// ExplorerEvent notifies other instances that cached explorer data changed
type ExplorerEvent struct {
	ID         string            `json:"id"`
	Type       ExplorerEventType `json:"type"`
	SearchID   string            `json:"search_id"`
	PageNumber int               `json:"page_number,omitempty"`
	PageSize   int               `json:"page_size,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewPageCachedEvent creates the event announcing a stored page
func NewPageCachedEvent(searchID string, pageNumber, pageSize int) *ExplorerEvent {
	return &ExplorerEvent{
		ID:         uuid.NewString(),
		Type:       ExplorerEventPageCached,
		SearchID:   searchID,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		Timestamp:  time.Now().UTC(),
	}
}

// NewSearchExpiredEvent creates the event announcing a purged search
func NewSearchExpiredEvent(searchID string) *ExplorerEvent {
	return &ExplorerEvent{
		ID:        uuid.NewString(),
		Type:      ExplorerEventSearchExpired,
		SearchID:  searchID,
		Timestamp: time.Now().UTC(),
	}
}
