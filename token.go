package linkauthn

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// AuthToken is the content of a login token.
// It's never persisted, only handed to the user inside a login link.
type AuthToken struct {
	// UID of the account the secret was issued to.
	UID int64 `json:"uid"`

	// Secret is the one-time secret of the pending login.
	Secret string `json:"secret"`
}

// Identity is the verified identity of a user.
// This is all protected resources get to know about a logged in user.
type Identity struct {
	UID   int64  `json:"uid"`
	Email string `json:"email"`
}

// tokenEncoding is URL safe, so tokens need no escaping in query parameters.
var tokenEncoding = base64.RawURLEncoding

// EncodeToken returns the opaque token string for the given uid and secret.
func EncodeToken(uid int64, secret string) string {
	// Marshaling a struct of an int64 and a string can't fail.
	data, _ := json.Marshal(AuthToken{UID: uid, Secret: secret})
	return tokenEncoding.EncodeToString(data)
}

// DecodeToken decodes a token string produced by EncodeToken.
// Any input that does not decode to a complete AuthToken yields ErrDecode.
// Decoding says nothing about the token's authenticity.
func DecodeToken(s string) (AuthToken, error) {
	data, err := tokenEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(s), "="))
	if err != nil {
		return AuthToken{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var raw struct {
		UID    *int64  `json:"uid"`
		Secret *string `json:"secret"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return AuthToken{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if dec.More() {
		return AuthToken{}, fmt.Errorf("%w: trailing data", ErrDecode)
	}
	if raw.UID == nil || raw.Secret == nil || *raw.Secret == "" {
		return AuthToken{}, fmt.Errorf("%w: missing fields", ErrDecode)
	}

	return AuthToken{UID: *raw.UID, Secret: *raw.Secret}, nil
}
