package domain

import "time"

// Account es el registro de usuario persistido en el directorio.
type Account struct {
	ID              string     `json:"id"`
	Name            string     `json:"name,omitempty"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Role            string     `json:"role"`
	ReferralCode    string     `json:"referral_code"`
	ReferredBy      string     `json:"referred_by,omitempty"`
	ReferralsCount  int        `json:"referrals_count"`
	ReferralRewards int        `json:"referral_rewards"`
	OtpCodeHash     string     `json:"-"`
	OtpExpiresAt    *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ReferredAccount es la vista reducida de una cuenta referida.
type ReferredAccount struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ReferralSummary agrupa los contadores de un referente y sus referidos.
type ReferralSummary struct {
	ReferralsCount  int               `json:"referralsCount"`
	ReferralRewards int               `json:"referralRewards"`
	ReferredUsers   []ReferredAccount `json:"referredUsers"`
}
