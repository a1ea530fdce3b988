package model

import "testing"

func TestPermissionLevelSatisfies(t *testing.T) {
	cases := []struct {
		have PermissionLevel
		want PermissionLevel
		ok   bool
	}{
		{LevelRead, LevelRead, true},
		{LevelRead, LevelWrite, false},
		{LevelRead, LevelAdmin, false},
		{LevelWrite, LevelRead, true},
		{LevelWrite, LevelWrite, true},
		{LevelWrite, LevelAdmin, false},
		{LevelAdmin, LevelRead, true},
		{LevelAdmin, LevelWrite, true},
		{LevelAdmin, LevelAdmin, true},
		{LevelAdmin, PermissionLevel("bogus"), false},
		{PermissionLevel(""), LevelRead, false},
	}
	for _, c := range cases {
		if got := c.have.Satisfies(c.want); got != c.ok {
			t.Errorf("%q.Satisfies(%q) = %v, want %v", c.have, c.want, got, c.ok)
		}
	}
}

func TestPermissionGrantExpired(t *testing.T) {
	now := int64(1000)
	forever := &PermissionGrant{ExpiresAt: 0}
	if forever.Expired(now) {
		t.Error("zero expiry must never expire")
	}
	past := &PermissionGrant{ExpiresAt: 999}
	if !past.Expired(now) {
		t.Error("past expiry must be expired")
	}
	boundary := &PermissionGrant{ExpiresAt: 1000}
	if !boundary.Expired(now) {
		t.Error("expiry at now must be expired")
	}
	future := &PermissionGrant{ExpiresAt: 1001}
	if future.Expired(now) {
		t.Error("future expiry must not be expired")
	}
}
