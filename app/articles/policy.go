package articles

import (
	"fmt"
	"time"
)

// VisibilityPolicy classifies articles against two sliding time boundaries.
// The display cutoff hides aged non-starred articles from queries; the older
// retention cutoff is the point past which they are dropped from storage
// entirely. The gap between the two is intentional: articles between the
// cutoffs are retained but hidden.
type VisibilityPolicy struct {
	displayWindow   time.Duration
	retentionWindow time.Duration
	now             func() time.Time
}

// NewVisibilityPolicy builds a policy hiding non-starred articles older than
// displayDays and retaining them up to retentionDays. The display window must
// be strictly shorter than the retention window.
func NewVisibilityPolicy(displayDays, retentionDays int) *VisibilityPolicy {
	if displayDays <= 0 || retentionDays <= displayDays {
		panic(fmt.Sprintf("articles: invalid visibility windows: display %d days, retention %d days", displayDays, retentionDays))
	}
	return &VisibilityPolicy{
		displayWindow:   time.Duration(displayDays) * 24 * time.Hour,
		retentionWindow: time.Duration(retentionDays) * 24 * time.Hour,
		now:             time.Now,
	}
}

// DisplayCutoff is the boundary beyond which non-starred articles are hidden.
func (p *VisibilityPolicy) DisplayCutoff() time.Time {
	return p.now().Add(-p.displayWindow)
}

// RetentionCutoff is the stricter boundary beyond which non-starred articles
// are permanently dropped.
func (p *VisibilityPolicy) RetentionCutoff() time.Time {
	return p.now().Add(-p.retentionWindow)
}

// IsIgnorable reports whether an incoming item with this existing status can
// be skipped entirely during a merge: deleted by the user, or non-starred and
// already past the retention boundary.
func (p *VisibilityPolicy) IsIgnorable(s *Status) bool {
	if s.UserDeleted {
		return true
	}
	if s.Starred {
		return false
	}
	return s.DateArrived.Before(p.RetentionCutoff())
}

// IsDisplayed reports whether an article belongs in display-facing results.
func (p *VisibilityPolicy) IsDisplayed(s *Status) bool {
	if s.UserDeleted {
		return false
	}
	return s.Starred || s.DateArrived.After(p.DisplayCutoff())
}
