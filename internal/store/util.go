package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateExchangeID creates a unique, time-ordered exchange ID.
// Format: ex-<timestamp>-<hash>
// Example: ex-20251021T143052Z-a3f9c2
func GenerateExchangeID(timestamp time.Time, channelID, messageID string) string {
	ts := timestamp.UTC().Format("20060102T150405Z")

	input := fmt.Sprintf("%s|%s|%d", channelID, messageID, timestamp.UnixNano())
	hash := sha256.Sum256([]byte(input))
	shortHash := hex.EncodeToString(hash[:3])

	return fmt.Sprintf("ex-%s-%s", ts, shortHash)
}
