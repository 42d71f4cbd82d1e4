package types

import "time"

// DefaultPlan is assigned to newly registered users.
const DefaultPlan = "free"

// User is a locally registered account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Credential holds the password digest for a user. It is stored apart from User.
type Credential struct {
	UserID       string    `json:"userId"`
	PasswordHash []byte    `json:"passwordHash"`
	Salt         []byte    `json:"salt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is the single active authentication of a store instance.
type Session struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Summary is a saved page summary.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	KeyPoints []string  `json:"keyPoints,omitempty"`
	WordCount int       `json:"wordCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Lead is a contact detail found on a page. Leads are never verified.
type Lead struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Source      string    `json:"source"`
	Verified    bool      `json:"verified"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// PriceMonitor is a one-shot price reading saved for later comparison.
type PriceMonitor struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Selector     string    `json:"selector"`
	CurrentPrice float64   `json:"currentPrice"`
	Currency     string    `json:"currency,omitempty"`
	PriceText    string    `json:"priceText,omitempty"`
	TargetPrice  *float64  `json:"targetPrice,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastChecked  time.Time `json:"lastChecked"`
}

// Activity is one entry of the bounded activity log.
type Activity struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// UserStats aggregates collection sizes for the signed-in user.
type UserStats struct {
	Summaries     int        `json:"summaries"`
	Leads         int        `json:"leads"`
	PriceMonitors int        `json:"priceMonitors"`
	Activities    int        `json:"activities"`
	Plan          string     `json:"plan"`
	MemberSince   time.Time  `json:"memberSince"`
	LastActivity  *time.Time `json:"lastActivity,omitempty"`
}
