package model

import (
	"strings"
	"time"
)

// QuoteID uniquely identifies a quote document
type QuoteID string

// QuoteStatus is the moderation state of a quote
type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "pending"
	QuoteStatusApproved QuoteStatus = "approved"
	QuoteStatusRejected QuoteStatus = "rejected"
)

// Valid reports whether s is a known status
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusApproved, QuoteStatusRejected:
		return true
	}
	return false
}

// QuoteCategory groups quotes for browsing
type QuoteCategory string

const (
	CategoryMotivation QuoteCategory = "motivation"
	CategoryWisdom     QuoteCategory = "wisdom"
	CategoryHumor      QuoteCategory = "humor"
	CategoryLife       QuoteCategory = "life"
	CategoryLove       QuoteCategory = "love"
	CategorySuccess    QuoteCategory = "success"
	CategoryCrypto     QuoteCategory = "crypto"
	CategoryOther      QuoteCategory = "other"
)

// QuoteCategories lists every accepted category
func QuoteCategories() []QuoteCategory {
	return []QuoteCategory{
		CategoryMotivation, CategoryWisdom, CategoryHumor, CategoryLife,
		CategoryLove, CategorySuccess, CategoryCrypto, CategoryOther,
	}
}

// ParseQuoteCategory normalizes and validates a category name
func ParseQuoteCategory(s string) (QuoteCategory, bool) {
	c := QuoteCategory(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range QuoteCategories() {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Quote is a user-submitted quote awaiting or past moderation
type Quote struct {
	ID          QuoteID       `json:"id"`
	Content     string        `json:"content"`
	SubmittedBy string        `json:"submittedBy"`
	Category    QuoteCategory `json:"category"`
	IsOwnQuote  bool          `json:"isOwnQuote"`
	Status      QuoteStatus   `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
}

// QuoteFilter narrows a quote listing. Zero values match everything.
type QuoteFilter struct {
	Status   QuoteStatus
	Category QuoteCategory
	Limit    int
}

// Matches reports whether q passes the filter
func (f QuoteFilter) Matches(q *Quote) bool {
	if f.Status != "" && q.Status != f.Status {
		return false
	}
	if f.Category != "" && q.Category != f.Category {
		return false
	}
	return true
}

// QuoteStats counts quotes per status
type QuoteStats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Total returns the number of quotes across all statuses
func (s QuoteStats) Total() int {
	return s.Pending + s.Approved + s.Rejected
}
