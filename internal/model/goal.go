package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/existflow/goalpost/internal/deadline"
)

// Status is the progress state of a goal
type Status string

// Statuses are freely assignable by the owner
const (
	StatusDoingIt  Status = "DoingIt"
	StatusNeedHelp Status = "NeedHelp"
	StatusDone     Status = "Done"
)

// Statuses lists every valid status in display order
var Statuses = []Status{StatusDoingIt, StatusNeedHelp, StatusDone}

// Valid reports whether s is one of the three statuses
func (s Status) Valid() bool {
	switch s {
	case StatusDoingIt, StatusNeedHelp, StatusDone:
		return true
	}
	return false
}

// Label returns the human form used by the original web client
func (s Status) Label() string {
	switch s {
	case StatusDoingIt:
		return "Doing It"
	case StatusNeedHelp:
		return "Need Help"
	default:
		return string(s)
	}
}

// ParseStatus accepts canonical values and legacy labels ("Doing It", "need help", ...)
func ParseStatus(s string) (Status, error) {
	switch fold(s) {
	case "doingit":
		return StatusDoingIt, nil
	case "needhelp":
		return StatusNeedHelp, nil
	case "done":
		return StatusDone, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Type is the goal cadence, used only for display filtering
type Type string

const (
	TypeOneTime Type = "OneTime"
	TypeDaily   Type = "Daily"
	TypeWeekly  Type = "Weekly"
)

// Types lists every valid type in display order
var Types = []Type{TypeOneTime, TypeDaily, TypeWeekly}

// Valid reports whether t is one of the three types
func (t Type) Valid() bool {
	switch t {
	case TypeOneTime, TypeDaily, TypeWeekly:
		return true
	}
	return false
}

// Label returns the human form used by the original web client
func (t Type) Label() string {
	if t == TypeOneTime {
		return "One-Time"
	}
	return string(t)
}

// ParseType accepts canonical values and legacy labels ("One-Time", "daily", ...)
func ParseType(s string) (Type, error) {
	switch fold(s) {
	case "onetime", "once":
		return TypeOneTime, nil
	case "daily":
		return TypeDaily, nil
	case "weekly":
		return TypeWeekly, nil
	}
	return "", fmt.Errorf("unknown goal type %q", s)
}

func fold(s string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}

// Goal is a time-boxed commitment posted by one member
type Goal struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Content     string     `json:"content"`
	Deadline    *time.Time `json:"deadline"`
	Status      Status     `json:"status"`
	Type        Type       `json:"type"`
	Deleted     bool       `json:"deleted"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DisplayName string     `json:"displayName,omitempty"`
	Nick        string     `json:"nick,omitempty"`
}

// Public returns the denormalized subset stored in the public projection
func (g Goal) Public() Goal {
	return Goal{
		ID:          g.ID,
		OwnerID:     g.OwnerID,
		Content:     g.Content,
		Deadline:    g.Deadline,
		Status:      g.Status,
		Type:        g.Type,
		Deleted:     g.Deleted,
		CreatedAt:   g.CreatedAt,
		DisplayName: g.DisplayName,
		Nick:        g.Nick,
	}
}

// Remaining returns the time left before the deadline, deadline.Forever without one
func (g *Goal) Remaining(now time.Time) time.Duration {
	return deadline.Remaining(g.Deadline, now)
}

// IsExpired returns true if the goal has a deadline at or before now
func (g *Goal) IsExpired(now time.Time) bool {
	return deadline.Expired(g.Deadline, now)
}

// Handle returns the name to show next to the goal: nick, then display name, then owner id
func (g *Goal) Handle() string {
	switch {
	case g.Nick != "":
		return g.Nick
	case g.DisplayName != "":
		return g.DisplayName
	case g.OwnerID != "":
		return g.OwnerID
	default:
		return "unknown"
	}
}

// FilterByType keeps goals of type t. An empty t keeps everything.
func FilterByType(goals []Goal, t Type) []Goal {
	if t == "" {
		return goals
	}
	out := make([]Goal, 0, len(goals))
	for _, g := range goals {
		if g.Type == t {
			out = append(out, g)
		}
	}
	return out
}
