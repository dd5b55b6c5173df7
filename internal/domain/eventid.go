package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Event categories.
const (
	CategoryNational = "national"
	CategoryRegional = "regional"
	CategoryDuel     = "duel"
)

// regionAll is the slug used when an event is not bound to a region.
const regionAll = "all"

// EventID addresses one simulated event. Its string form is the stable
// contract shared with persistence and the settlement path:
//
//	{round}_{index}_{category}_{region-slug}
//
// Region slugs only ever contain [a-z0-9-], so the four components can always
// be split back out of the string.
type EventID struct {
	Round    int64
	Index    int
	Category string
	Region   string
}

// String formats the id.
func (id EventID) String() string {
	region := Slugify(id.Region)
	if region == "" {
		region = regionAll
	}
	return fmt.Sprintf("%d_%d_%s_%s", id.Round, id.Index, id.Category, region)
}

// RegionSlug returns the slug stored in the id, or "" for unbound events.
func (id EventID) RegionSlug() string {
	s := Slugify(id.Region)
	if s == regionAll {
		return ""
	}
	return s
}

// IsDuel reports whether the id refers to a two-participant duel.
func (id EventID) IsDuel() bool { return id.Category == CategoryDuel }

// MarshalText implements encoding.TextMarshaler.
func (id EventID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *EventID) UnmarshalText(text []byte) error {
	parsed, err := ParseEventID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseEventID is the inverse of EventID.String.
func ParseEventID(s string) (EventID, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "_", 4)
	if len(parts) != 4 {
		return EventID{}, fmt.Errorf("%w: %q", ErrInvalidEventID, s)
	}
	round, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || round < 0 {
		return EventID{}, fmt.Errorf("%w: round %q", ErrInvalidEventID, parts[0])
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return EventID{}, fmt.Errorf("%w: index %q", ErrInvalidEventID, parts[1])
	}
	category := parts[2]
	switch category {
	case CategoryNational, CategoryRegional, CategoryDuel:
	default:
		return EventID{}, fmt.Errorf("%w: category %q", ErrInvalidEventID, category)
	}
	region := parts[3]
	if region == "" || Slugify(region) != region {
		return EventID{}, fmt.Errorf("%w: region %q", ErrInvalidEventID, region)
	}
	if region == regionAll {
		region = ""
	}
	return EventID{Round: round, Index: index, Category: category, Region: region}, nil
}

// Slugify lower-cases s and collapses every run of characters outside
// [a-z0-9] into a single '-'.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if unicode.IsSpace(r) || r == '-' || r == '_' || unicode.IsPunct(r) || r > unicode.MaxASCII {
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
