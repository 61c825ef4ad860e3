package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxTeamMembers is the number of non-owner seats a team subscription offers.
const MaxTeamMembers = 4

type InvitationStatus string

const (
	InvitationStatusPending InvitationStatus = "pending"
	InvitationStatusSuccess InvitationStatus = "success"
	InvitationStatusFailed  InvitationStatus = "failed"
)

// TokenHealth is the derived state of a team's access token, based on the
// consecutive remote authorization failures recorded against it.
type TokenHealth string

const (
	TokenHealthValid    TokenHealth = "valid"
	TokenHealthDegraded TokenHealth = "degraded"
	TokenHealthExpired  TokenHealth = "expired"
)

type Team struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	AccountID      string     `json:"account_id"`
	AccessToken    string     `json:"-"`
	OrganizationID string     `json:"organization_id,omitempty"`
	Email          string     `json:"email,omitempty"`
	LastInviteAt   *time.Time `json:"last_invite_at,omitempty"`
	AuthFailures   int        `json:"auth_failures"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TokenHealth derives the credential state from the failure counter.
func (t Team) TokenHealth() TokenHealth {
	switch {
	case t.AuthFailures >= 3:
		return TokenHealthExpired
	case t.AuthFailures >= 1:
		return TokenHealthDegraded
	default:
		return TokenHealthValid
	}
}

type AccessKey struct {
	ID        uuid.UUID  `json:"id"`
	TeamID    *uuid.UUID `json:"team_id,omitempty"`
	Code      string     `json:"code"`
	IsTemp    bool       `json:"is_temp"`
	TempHours int        `json:"temp_hours"`
	Cancelled bool       `json:"cancelled"`
	CreatedAt time.Time  `json:"created_at"`
}

type Invitation struct {
	ID           uuid.UUID        `json:"id"`
	TeamID       uuid.UUID        `json:"team_id"`
	KeyID        *uuid.UUID       `json:"key_id,omitempty"`
	Email        string           `json:"email"`
	UserID       string           `json:"user_id,omitempty"`
	InviteID     string           `json:"invite_id,omitempty"`
	Status       InvitationStatus `json:"status"`
	IsTemp       bool             `json:"is_temp"`
	TempExpireAt *time.Time       `json:"temp_expire_at,omitempty"`
	Confirmed    bool             `json:"confirmed"`
	CreatedAt    time.Time        `json:"created_at"`
}

type AutoKickConfig struct {
	Enabled          bool      `json:"enabled"`
	CheckIntervalMin int       `json:"check_interval_min"`
	CheckIntervalMax int       `json:"check_interval_max"`
	StartTime        string    `json:"start_time"` // "HH:MM"
	EndTime          string    `json:"end_time"`   // "HH:MM", window may wrap midnight
	Timezone         string    `json:"timezone"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type KickLog struct {
	ID           uuid.UUID `json:"id"`
	TeamID       uuid.UUID `json:"team_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Reason       string    `json:"reason"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type LoginAttempt struct {
	ID        uuid.UUID `json:"id"`
	IPAddress string    `json:"ip_address"`
	Username  string    `json:"username,omitempty"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}
