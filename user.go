package linkauthn

import "time"

// UserAccount represents a user that may log in.
// Accounts are provisioned out of band; only the pending login secret is
// managed by this package.
type UserAccount struct {
	// UID is the identity of the user, also used to look up course records.
	UID int64 `bson:"uid"`

	// Lowercased email of the user. Used for lookups.
	Email string `bson:"email"`

	// Secret of the pending login, nil if there is none.
	Secret *string `bson:"secret,omitempty"`

	// SecretIssuedAt is the issuance time of Secret in epoch milliseconds.
	SecretIssuedAt *int64 `bson:"timestamp,omitempty"`
}

// Identity returns the identity of the account.
func (u *UserAccount) Identity() Identity {
	return Identity{UID: u.UID, Email: u.Email}
}

// IssuedAt returns the issuance time of the pending secret.
// The zero time is returned if there is no pending secret.
func (u *UserAccount) IssuedAt() time.Time {
	if u.SecretIssuedAt == nil {
		return time.Time{}
	}
	return time.UnixMilli(*u.SecretIssuedAt)
}

// Client holds some information about the client.
type Client struct {
	// User agent of the client.
	UserAgent string `json:"agent,omitempty"`

	// IP address of the client.
	IP string `json:"ip,omitempty"`
}
