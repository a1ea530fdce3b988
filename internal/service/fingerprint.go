package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// normalizeQuery folds whitespace and case so semantically identical requests
// fingerprint identically: trimmed, lower-cased, runs of whitespace collapsed
// to single spaces.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Fingerprint derives the cache key for a retrieval request. Threshold is
// fixed to two decimals so float noise cannot split otherwise identical
// requests.
func Fingerprint(query, hubArea string, threshold float32, count int) string {
	key := fmt.Sprintf("%s|%s|%.2f|%d", normalizeQuery(query), strings.TrimSpace(hubArea), threshold, count)
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
