package articles

import (
	"fmt"
	"time"
)

// Flag names one of the per-article status booleans.
type Flag string

const (
	FlagRead        Flag = "read"
	FlagStarred     Flag = "starred"
	FlagUserDeleted Flag = "user_deleted"
)

func (f Flag) Valid() bool {
	switch f {
	case FlagRead, FlagStarred, FlagUserDeleted:
		return true
	}
	return false
}

// Status holds the per-article flags and arrival time. Exactly one status
// exists per articleID; it can exist in storage before any article content is
// known.
type Status struct {
	ArticleID   string    `db:"article_id"`
	Read        bool      `db:"read"`
	Starred     bool      `db:"starred"`
	UserDeleted bool      `db:"user_deleted"`
	DateArrived time.Time `db:"date_arrived"`
}

// NewStatus returns the default status for a freshly seen article. The
// arrival time is the parsed publish time when the source provided one,
// otherwise now.
func NewStatus(articleID string, publishedAt time.Time) Status {
	arrived := publishedAt
	if arrived.IsZero() {
		arrived = time.Now()
	}
	return Status{
		ArticleID:   articleID,
		DateArrived: arrived,
	}
}

func (s *Status) Flag(f Flag) bool {
	switch f {
	case FlagRead:
		return s.Read
	case FlagStarred:
		return s.Starred
	case FlagUserDeleted:
		return s.UserDeleted
	}
	panic(fmt.Sprintf("articles: unknown flag %q", f))
}

func (s *Status) SetFlag(f Flag, value bool) {
	switch f {
	case FlagRead:
		s.Read = value
	case FlagStarred:
		s.Starred = value
	case FlagUserDeleted:
		s.UserDeleted = value
	default:
		panic(fmt.Sprintf("articles: unknown flag %q", f))
	}
}
