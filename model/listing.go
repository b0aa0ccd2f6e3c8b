package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingKind string

const (
	KindRecycle ListingKind = "recycle"
	KindSalvage ListingKind = "salvage"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingExpired   ListingStatus = "expired"
	ListingCancelled ListingStatus = "cancelled"
)

func (s ListingStatus) Terminal() bool { return s != ListingActive }

// MaxAmount is the largest price or bid a DECIMAL(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Categories lists the allowed categories per listing kind.
var Categories = map[ListingKind][]string{
	KindRecycle: {"metals", "plastics", "paper", "cardboard", "glass", "electronics", "textiles", "organics"},
	KindSalvage: {"furniture", "building-materials", "vehicle-parts", "appliances", "machinery", "fixtures", "timber"},
}

// Durations are the listing lifetimes a seller may choose, in days.
var Durations = []int{7, 14, 30}

func ValidCategory(kind ListingKind, category string) bool {
	for _, c := range Categories[kind] {
		if c == category {
			return true
		}
	}
	return false
}

func ValidDuration(days int) bool {
	for _, d := range Durations {
		if d == days {
			return true
		}
	}
	return false
}

type Listing struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Kind         ListingKind     `json:"kind"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	Location     string          `json:"location"`
	ImageRefs    []string        `json:"image_refs"`
	Status       ListingStatus   `json:"status"`
	DurationDays int             `json:"duration_days"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OpenAt reports whether buyers may see and bid on the listing at now.
// A listing is closed from the instant expires_at is reached, whether or
// not the sweep has run.
func (l *Listing) OpenAt(now time.Time) bool {
	return l.Status == ListingActive && now.Before(l.ExpiresAt)
}

// ListingInput carries the seller-editable attributes.
type ListingInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Kind         ListingKind     `json:"kind"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	Location     string          `json:"location"`
	ImageRefs    []string        `json:"image_refs"`
	DurationDays int             `json:"duration_days"`
}

type ListingFilter struct {
	Kind     ListingKind
	Category string
}
