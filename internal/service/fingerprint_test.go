package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintNormalization(t *testing.T) {
	base := Fingerprint("how do i rotate keys", "security", 0.7, 5)
	require.Equal(t, base, Fingerprint("  How   do I  rotate KEYS ", "security", 0.7, 5))
	require.Equal(t, base, Fingerprint("how\tdo\ni rotate keys", "security", 0.7, 5))
}

func TestFingerprintDiscriminates(t *testing.T) {
	base := Fingerprint("rotate keys", "security", 0.7, 5)
	require.NotEqual(t, base, Fingerprint("rotate keys", "ops", 0.7, 5))
	require.NotEqual(t, base, Fingerprint("rotate keys", "security", 0.8, 5))
	require.NotEqual(t, base, Fingerprint("rotate keys", "security", 0.7, 10))
	require.NotEqual(t, base, Fingerprint("revoke keys", "security", 0.7, 5))
}

func TestNormalizeQuery(t *testing.T) {
	require.Equal(t, "a b c", normalizeQuery("  A   b\tC "))
	require.Equal(t, "", normalizeQuery("   "))
}
