package model

import (
	"strings"
	"time"
)

type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPending   ContentStatus = "pending"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusRejected  ContentStatus = "rejected"
)

// Content is the minimal projection of a content item needed to sell it.
type Content struct {
	ID            string
	BeneficiaryID string // owning creator
	Title         string
	Price         int64
	Status        ContentStatus
	Views         int64
	CreatedAt     time.Time
}

func (c *Content) Purchasable() bool {
	return c != nil && c.Status == ContentStatusPublished && c.Price > 0
}

// TitleMatches is the case-insensitive containment check used by the title
// heuristic; it mirrors the ILIKE '%hint%' query of the store.
func (c *Content) TitleMatches(hint string) bool {
	hint = strings.TrimSpace(hint)
	if c == nil || hint == "" {
		return false
	}
	return strings.Contains(strings.ToLower(c.Title), strings.ToLower(hint))
}

// Actor is the identity of a signed-in user.
type Actor struct {
	ID          string
	Email       string
	DisplayName string
	IsCreator   bool
}
