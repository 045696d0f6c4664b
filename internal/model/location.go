// Package model defines domain entities for the application.
package model

import (
	"strings"
	"time"
)

// Location type constants.
const (
	LocationLocker = "LOCKER"
	LocationShop   = "SHOP"
)

// Location is a pickup point (smart locker or service shop). Consumed
// read-only by the metered lookup endpoint; rows come from the seeder.
type Location struct {
	ID           string    `json:"id"`
	LocationType string    `json:"location_type"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	District     string    `json:"district"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	Phone        string    `json:"phone"`
	OpeningHours string    `json:"opening_hours"`
	IsActive     bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// LocationFilter narrows a location query. Type is matched exactly after
// upper-casing; District and Search are case-insensitive substring matches
// on district and name respectively. Empty fields are ignored.
type LocationFilter struct {
	Type     string
	District string
	Search   string
}

// Normalize returns a canonical copy of the filter: type upper-cased,
// all fields trimmed. Used both for querying and as a cache key basis.
func (f LocationFilter) Normalize() LocationFilter {
	return LocationFilter{
		Type:     strings.ToUpper(strings.TrimSpace(f.Type)),
		District: strings.TrimSpace(f.District),
		Search:   strings.TrimSpace(f.Search),
	}
}

// IsZero reports whether no filter fields are set.
func (f LocationFilter) IsZero() bool {
	return f.Type == "" && f.District == "" && f.Search == ""
}
