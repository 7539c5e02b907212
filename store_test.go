package linkauthn

import (
	"context"
	"errors"
	"testing"
)

// testSecretStore runs the SecretStore contract checks against store, which
// must hold testAccounts() without pending secrets.
func testSecretStore(t *testing.T, store SecretStore) {
	ctx := context.Background()

	if _, err := store.IssueSecret(ctx, "nobody@connect.hku.hk", "s0", testEpoch); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Expected: %v, got: %v", ErrUnknownUser, err)
	}

	acc, err := store.IssueSecret(ctx, "student@connect.hku.hk", "s1", testEpoch)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if acc.UID != 102 || acc.Secret == nil || *acc.Secret != "s1" || !acc.IssuedAt().Equal(testEpoch) {
		t.Errorf("Unexpected account: %+v", acc)
	}

	cases := []struct {
		title  string
		secret string
		expErr error
		expUID int64
	}{
		{title: "empty", secret: "", expErr: ErrNotFound},
		{title: "unknown", secret: "s2", expErr: ErrNotFound},
		{title: "found", secret: "s1", expUID: 102},
	}
	for _, c := range cases {
		acc, err := store.FindBySecret(ctx, c.secret)
		if c.expErr != nil {
			if !errors.Is(err, c.expErr) {
				t.Errorf("[%s] Expected: %v, got: %v", c.title, c.expErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("[%s] Expected no error, got: %v", c.title, err)
			continue
		}
		if acc.UID != c.expUID {
			t.Errorf("[%s] Expected: %d, got: %d", c.title, c.expUID, acc.UID)
		}
	}

	// Reissuing replaces the secret
	if _, err := store.IssueSecret(ctx, "student@connect.hku.hk", "s3", testEpoch); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := store.FindBySecret(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if err := store.Consume(ctx, 102, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}

	// Consume checks the uid too
	if err := store.Consume(ctx, 101, "s3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if err := store.Consume(ctx, 102, "s3"); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if err := store.Consume(ctx, 102, "s3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if _, err := store.FindBySecret(ctx, "s3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
	if err := store.Consume(ctx, 102, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
}

func TestMemoryStore(t *testing.T) {
	testSecretStore(t, NewMemoryStore(testAccounts()...))
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testAccounts()...)

	acc, err := store.IssueSecret(ctx, "student@connect.hku.hk", "s1", testEpoch)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	*acc.Secret = "tampered"
	if _, err := store.FindBySecret(ctx, "s1"); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if _, err := store.FindBySecret(ctx, "tampered"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
	}
}
