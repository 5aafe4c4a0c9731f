package models

import (
	"errors"
	"time"
)

// User is an account that owns tasks and collections. The password hash is
// never serialized.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"-"`
}

// Task represents a single todo item owned by a user. A task belongs to at
// most one collection.
type Task struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"-"`
	CollectionID *int64     `json:"collection_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Completed    bool       `json:"completed"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Collection groups tasks under a name unique per owner. Tasks is populated
// only when the collection is fetched by id.
type Collection struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Name      string    `json:"name"`
	Tasks     []Task    `json:"tasks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Page bounds list queries. Limit is capped at MaxPageLimit.
type Page struct {
	Offset int
	Limit  int
}

// MaxPageLimit is the largest page size a list endpoint will serve.
const MaxPageLimit = 100

// Clamp normalizes a page to sane bounds.
func (p Page) Clamp() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 || p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	Completed bool
	// DueBy keeps only tasks with a deadline at or before this instant.
	DueBy *time.Time
}

// TaskPatch carries a partial task update. Nil fields are untouched.
// ClearCollection detaches the task regardless of CollectionID.
type TaskPatch struct {
	Title           *string
	Description     *string
	Completed       *bool
	Deadline        *time.Time
	CollectionID    *int64
	ClearCollection bool
}

// CollectionPatch carries a partial collection update.
type CollectionPatch struct {
	Name *string
}

// ErrBadDeadline reports an unparseable deadline value.
var ErrBadDeadline = errors.New("deadline must be RFC 3339 or YYYY-MM-DD")

// ParseDeadline accepts an RFC 3339 timestamp or the date-only shorthand,
// which resolves to the end of that day. Empty input means no deadline.
func ParseDeadline(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		t := d.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		return &t, nil
	}
	return nil, ErrBadDeadline
}
