package roles

import "time"

// Profile represents the durable belief about one actor's role.
// Role and Confidence are set together: an unknown role always
// carries zero confidence.
type Profile struct {
	IdentityID     string                 `json:"identityId,omitempty"`
	SessionID      string                 `json:"sessionId,omitempty"`
	Role           Role                   `json:"role"`
	Confidence     float64                `json:"confidence"`
	Method         string                 `json:"method"`
	BehavioralData map[string]interface{} `json:"behavioralData,omitempty"`
	ExpiresAt      *time.Time             `json:"expiresAt,omitempty"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// NewProfile creates an empty profile for an actor. The zero belief is
// an unknown role with zero confidence.
func NewProfile(identityID, sessionID string) *Profile {
	return &Profile{
		IdentityID:     identityID,
		SessionID:      sessionID,
		Role:           RoleUnknown,
		Confidence:     0,
		Method:         MethodUnknown,
		BehavioralData: make(map[string]interface{}),
	}
}

// HasRole reports whether the profile carries an assignable role.
func (p *Profile) HasRole() bool {
	return p != nil && p.Role.IsValid()
}

// Expired reports whether the profile's expiry has passed at the given
// instant. A nil ExpiresAt means no expiry policy has been applied.
func (p *Profile) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// Resolution is the outcome of one role resolution, attached to the
// request pipeline for downstream routing decisions.
type Resolution struct {
	Profile                    *Profile           `json:"profile"`
	ShouldCache                bool               `json:"shouldCache"`
	ShouldShowConfidentRouting bool               `json:"shouldShowConfidentRouting"`
	TTL                        time.Duration      `json:"-"`
	CacheInstructions          *CacheInstructions `json:"cacheInstructions,omitempty"`
}

// CacheInstructions is the client priming payload: what the browser
// collaborator should store locally, and for how long.
type CacheInstructions struct {
	LocalStorage   map[string]string `json:"localStorage"`
	SessionStorage map[string]string `json:"sessionStorage"`
	ExpiresAt      *time.Time        `json:"expiration,omitempty"`
}

// Client storage keys primed on confident detections.
const (
	ClientRoleKey       = "arzani_user_role"
	ClientConfidenceKey = "arzani_role_confidence"
	ClientExpirationKey = "arzani_role_expires"
	ClientBehavioralKey = "arzani_behavioral_data"
	ClientMethodKey     = "arzani_routing_method"
)
