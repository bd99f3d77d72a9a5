package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ShortID is the small barcode-friendly integer identity shared by every
// labelled asset type. It is distinct from the entity's uuid primary key: the
// uuid identifies a row, the ShortID identifies the sticker on the hardware.
type ShortID int64

// EntityType enumerates the asset types that carry a ShortID. Data centers,
// devices and cables as a whole are intentionally absent: they are reached
// through an asset that does carry one.
type EntityType string

const (
	EntityTypeRoom          EntityType = "room"
	EntityTypeCabinet       EntityType = "cabinet"
	EntityTypePanel         EntityType = "panel"
	EntityTypePort          EntityType = "port"
	EntityTypeCableEndpoint EntityType = "cable_endpoint"
)

// ValidEntityType reports whether t is one of the label-bearing asset types.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypeRoom, EntityTypeCabinet, EntityTypePanel, EntityTypePort, EntityTypeCableEndpoint:
		return true
	}
	return false
}

// FormatShortID renders the fixed-width label form, e.g. E-00001. Values too
// wide for the configured width keep all their digits.
func FormatShortID(id ShortID, prefix string, width int) string {
	if width <= 0 {
		width = 5
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, int64(id))
}

// ParseShortID accepts either the raw decimal form ("123") or the printed
// label form ("E-00123", any prefix) and normalizes to the integer.
func ParseShortID(s string) (ShortID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("short id is empty")
	}

	raw := s
	if i := strings.LastIndex(s, "-"); i >= 0 {
		raw = s[i+1:]
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid short id %q", s)
	}
	if value <= 0 {
		return 0, fmt.Errorf("short id must be positive, got %d", value)
	}

	return ShortID(value), nil
}
