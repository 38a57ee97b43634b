package preference

import (
	"time"

	"github.com/google/uuid"
)

// Frequency controls marketing email cadence. Transactional mail is always
// immediate; frequency never gates it.
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyNever     Frequency = "never"
)

// Valid reports whether the frequency is one of the known values.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyImmediate, FrequencyDaily, FrequencyWeekly, FrequencyNever:
		return true
	}
	return false
}

// Transactional categories a user can opt out of.
const (
	CategoryBookingConfirmation = "booking_confirmation"
	CategoryBookingUpdate       = "booking_update"
	CategoryMessageReceived     = "message_received"
	CategoryPasswordReset       = "password_reset"
	CategoryAccountUpdate       = "account_update"
)

// Marketing categories a user can opt in to.
const (
	CategoryNewsletter     = "newsletter"
	CategoryPromotions     = "promotions"
	CategoryProductUpdates = "product_updates"
	CategoryTips           = "tips"
)

// Preference holds one user's email opt-in flags.
type Preference struct {
	UserID        uuid.UUID       `json:"user_id"`
	Transactional map[string]bool `json:"transactional"`
	Marketing     map[string]bool `json:"marketing"`
	Frequency     Frequency       `json:"frequency"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Default returns the preferences assigned to a user who never touched them:
// all transactional categories on, all marketing categories off.
func Default(userID uuid.UUID) Preference {
	return Preference{
		UserID: userID,
		Transactional: map[string]bool{
			CategoryBookingConfirmation: true,
			CategoryBookingUpdate:       true,
			CategoryMessageReceived:     true,
			CategoryPasswordReset:       true,
			CategoryAccountUpdate:       true,
		},
		Marketing: map[string]bool{
			CategoryNewsletter:     false,
			CategoryPromotions:     false,
			CategoryProductUpdates: false,
			CategoryTips:           false,
		},
		Frequency: FrequencyImmediate,
		UpdatedAt: time.Now(),
	}
}

// TransactionalEnabled reports whether a transactional category is allowed.
// Unknown categories default to enabled: a missing flag must never silently
// stop a transactional email.
func (p Preference) TransactionalEnabled(category string) bool {
	enabled, ok := p.Transactional[category]
	if !ok {
		return true
	}
	return enabled
}

// Patch is a partial preference update; nil maps and pointer leave the
// corresponding fields untouched.
type Patch struct {
	Transactional map[string]bool `json:"transactional,omitempty"`
	Marketing     map[string]bool `json:"marketing,omitempty"`
	Frequency     *Frequency      `json:"frequency,omitempty"`
}

// apply merges the patch into a preference.
func (p *Preference) apply(patch Patch) {
	for k, v := range patch.Transactional {
		p.Transactional[k] = v
	}
	for k, v := range patch.Marketing {
		p.Marketing[k] = v
	}
	if patch.Frequency != nil {
		p.Frequency = *patch.Frequency
	}
	p.UpdatedAt = time.Now()
}
