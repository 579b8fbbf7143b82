package recommendation

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
)

type InteractionType string

const (
	InteractionView      InteractionType = "view"
	InteractionClick     InteractionType = "click"
	InteractionLike      InteractionType = "like"
	InteractionPass      InteractionType = "pass"
	InteractionSuperLike InteractionType = "super_like"
	InteractionShare     InteractionType = "share"
	InteractionVisit     InteractionType = "visit"
	InteractionMessage   InteractionType = "message"
)

type ConnectionStatus string

const (
	ConnectionPending   ConnectionStatus = "pending"
	ConnectionConnected ConnectionStatus = "connected"
	ConnectionActive    ConnectionStatus = "active"
	ConnectionEnded     ConnectionStatus = "ended"
	ConnectionBlocked   ConnectionStatus = "blocked"
)

type Category string

const (
	CategoryUser     Category = "user"
	CategoryLocation Category = "location"
	CategoryReunion  Category = "reunion"
)

// Action outcomes recorded against a recommendation
const (
	ActionLiked      = "liked"
	ActionPassed     = "passed"
	ActionSuperLiked = "super_liked"
)

// Training signal types
const (
	SignalUserInteraction        = "user_interaction"
	SignalMutualMatch            = "mutual_match"
	SignalRecommendationsCreated = "recommendation_generation"
	SignalModelAdjustment        = "ai_recommendation_adjustment"
)

// User is the read-only view of a profile the engine scores against.
// Coordinates are stored as decimals and may be absent.
type User struct {
	ID                  string         `json:"id" db:"id"`
	DisplayName         *string        `json:"display_name,omitempty" db:"display_name"`
	Photos              pq.StringArray `json:"photos" db:"photos"`
	Latitude            *string        `json:"latitude,omitempty" db:"latitude"`
	Longitude           *string        `json:"longitude,omitempty" db:"longitude"`
	OnboardingCompleted bool           `json:"onboarding_completed" db:"onboarding_completed"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
}

// HasName reports whether the profile carries a non-empty display name
func (u *User) HasName() bool {
	return u.DisplayName != nil && *u.DisplayName != ""
}

// Coordinates returns the parsed location, ok=false when absent or invalid
func (u *User) Coordinates() (lat, lon float64, ok bool) {
	return ParseCoordinates(u.Latitude, u.Longitude)
}

type InteractionEvent struct {
	ID              int64           `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	TargetUserID    *string         `json:"target_user_id,omitempty" db:"target_user_id"`
	LocationID      *string         `json:"location_id,omitempty" db:"location_id"`
	InteractionType InteractionType `json:"interaction_type" db:"interaction_type"`
	Duration        *int            `json:"duration,omitempty" db:"duration"`
	Context         *string         `json:"context,omitempty" db:"context"`
	Metadata        json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

type Connection struct {
	ID              int64            `json:"id" db:"id"`
	UserID          string           `json:"user_id" db:"user_id"`
	ConnectedUserID string           `json:"connected_user_id" db:"connected_user_id"`
	Status          ConnectionStatus `json:"status" db:"status"`
	ConnectionType  string           `json:"connection_type" db:"connection_type"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// OtherParty returns the id on the far side of the connection from userID
func (c *Connection) OtherParty(userID string) string {
	if c.UserID == userID {
		return c.ConnectedUserID
	}
	return c.UserID
}

// CandidateScore is the transient per-generation score for one candidate.
// Score is unbounded and accumulates additively across collectors.
type CandidateScore struct {
	UserID          string
	CandidateUserID string
	Score           float64
	Reasons         []string
	Category        Category
}

func (c CandidateScore) clone() CandidateScore {
	c.Reasons = append([]string(nil), c.Reasons...)
	return c
}

type Recommendation struct {
	ID                int64          `json:"id" db:"id"`
	UserID            string         `json:"user_id" db:"user_id"`
	RecommendedUserID string         `json:"recommended_user_id" db:"recommended_user_id"`
	ConfidenceScore   int            `json:"confidence_score" db:"confidence_score"`
	ReasonCodes       pq.StringArray `json:"reason_codes" db:"reason_codes"`
	Category          Category       `json:"category" db:"category"`
	IsActive          bool           `json:"is_active" db:"is_active"`
	IsViewed          bool           `json:"is_viewed" db:"is_viewed"`
	IsActedOn         bool           `json:"is_acted_on" db:"is_acted_on"`
	ActionTaken       *string        `json:"action_taken,omitempty" db:"action_taken"`
	ExpiresAt         *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

type TrainingSignal struct {
	ID         int64           `json:"id" db:"id"`
	SignalType string          `json:"signal_type" db:"signal_type"`
	Data       json.RawMessage `json:"data" db:"data"`
	Processed  bool            `json:"processed" db:"processed"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
