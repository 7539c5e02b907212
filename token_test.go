package linkauthn

import (
	"encoding/base64"
	"errors"
	"net/url"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	cases := []struct {
		title  string
		uid    int64
		secret string
	}{
		{"simple", 102, "0123456789abcdef"},
		{"zero-uid", 0, "s"},
		{"negative-uid", -7, "s"},
		{"max-uid", 1<<63 - 1, "ffffffffffffffffffffffffffffffff"},
		{"base64-secret", 1, "a+b/c=="},
		{"unicode-secret", 3, "árvíztűrő tükörfúrógép"},
	}

	for _, c := range cases {
		token := EncodeToken(c.uid, c.secret)
		if url.QueryEscape(token) != token {
			t.Errorf("[%s] Token needs escaping: %s", c.title, token)
		}
		got, err := DecodeToken(token)
		if err != nil {
			t.Errorf("[%s] Expected no error, got: %v", c.title, err)
			continue
		}
		if exp := (AuthToken{UID: c.uid, Secret: c.secret}); got != exp {
			t.Errorf("[%s] Expected: %+v, got: %+v", c.title, exp, got)
		}
	}
}

func TestDecodeTokenErrors(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	cases := []struct {
		title string
		token string
	}{
		{"empty", ""},
		{"not-base64", "!!!"},
		{"not-json", enc("hello")},
		{"json-array", enc(`[1,"s"]`)},
		{"string-uid", enc(`{"uid":"102","secret":"s"}`)},
		{"float-uid", enc(`{"uid":1.5,"secret":"s"}`)},
		{"number-secret", enc(`{"uid":1,"secret":5}`)},
		{"missing-uid", enc(`{"secret":"s"}`)},
		{"missing-secret", enc(`{"uid":1}`)},
		{"empty-secret", enc(`{"uid":1,"secret":""}`)},
		{"null-secret", enc(`{"uid":1,"secret":null}`)},
		{"unknown-field", enc(`{"uid":1,"secret":"s","admin":true}`)},
		{"trailing-data", enc(`{"uid":1,"secret":"s"}{}`)},
	}

	for _, c := range cases {
		if _, err := DecodeToken(c.token); !errors.Is(err, ErrDecode) {
			t.Errorf("[%s] Expected: %v, got: %v", c.title, ErrDecode, err)
		}
	}
}

func TestDecodeTokenPadded(t *testing.T) {
	// Padding is tolerated
	token := base64.URLEncoding.EncodeToString([]byte(`{"uid":5,"secret":"abcd"}`))
	got, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if exp := (AuthToken{UID: 5, Secret: "abcd"}); got != exp {
		t.Errorf("Expected: %+v, got: %+v", exp, got)
	}
}
