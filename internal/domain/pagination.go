package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// DefaultMaxItems is the default page size when none is specified.
const DefaultMaxItems = 100

// MaxMaxItems is the maximum allowed page size.
const MaxMaxItems = 1000

// PageRequest holds pagination parameters for list operations.
type PageRequest struct {
	MaxItems int
	Marker   string // opaque token (base64-encoded offset)
}

// Offset decodes the marker into an integer offset.
// Returns 0 if the marker is empty or invalid.
func (p PageRequest) Offset() int {
	if p.Marker == "" {
		return 0
	}
	decoded, err := base64.StdEncoding.DecodeString(p.Marker)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(decoded))
	if err != nil {
		return 0
	}
	return offset
}

// Limit returns the effective page size, clamped to [1, MaxMaxItems].
func (p PageRequest) Limit() int {
	if p.MaxItems <= 0 {
		return DefaultMaxItems
	}
	if p.MaxItems > MaxMaxItems {
		return MaxMaxItems
	}
	return p.MaxItems
}

// EncodeMarker creates an opaque marker from an offset.
// Returns empty string if offset is 0 or negative.
func EncodeMarker(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", offset)))
}

// NextMarker calculates the marker for the page after [offset, offset+limit).
// Returns empty string if there are no more pages.
func NextMarker(offset, limit int, total int64) string {
	next := offset + limit
	if int64(next) >= total {
		return ""
	}
	return EncodeMarker(next)
}
