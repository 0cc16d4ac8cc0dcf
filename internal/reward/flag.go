package reward

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FlagReward returns bigReward when the submitted flag matches one of the
// registered flag hashes, else zero. knownFlags maps a flag label to the
// lowercase hex SHA-256 of the correct flag text; comparison is
// constant-time.
func FlagReward(flag string, knownFlags map[string]string, bigReward float64) float64 {
	if len(knownFlags) == 0 {
		return 0
	}

	sum := sha256.Sum256([]byte(strings.TrimSpace(flag)))
	submitted := hex.EncodeToString(sum[:])

	for _, expected := range knownFlags {
		if hmac.Equal([]byte(submitted), []byte(strings.ToLower(expected))) {
			return bigReward
		}
	}
	return 0
}

// HashFlag produces the registration hash for a flag, for building
// knownFlags maps.
func HashFlag(flag string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(flag)))
	return hex.EncodeToString(sum[:])
}
