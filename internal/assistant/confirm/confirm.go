// Package confirm decides when an intent must be echoed back to the user
// before execution, and recognizes the user's reply. The gate itself holds
// no state: confirmation state travels with the caller between turns.
package confirm

import (
	"fmt"
	"strings"

	"gigline/internal/assistant/intent"
)

// DefaultBulkThreshold applies when no config value is set: update/delete
// intents touching more rows than this must be confirmed.
const DefaultBulkThreshold = 5

var affirmations = map[string]bool{
	"oui": true, "yes": true, "ok": true,
	"confirmer": true, "confirm": true,
	"y": true, "o": true,
}

// Requires reports whether the intent needs an explicit confirmation turn.
// targets is the resolved target count. Deletes always confirm; updates
// only past the bulk threshold.
func Requires(in intent.Intent, targets, bulkThreshold int) bool {
	if bulkThreshold <= 0 {
		bulkThreshold = DefaultBulkThreshold
	}
	if in.Operation == intent.OpDelete {
		return true
	}
	if in.Operation == intent.OpUpdate && targets > bulkThreshold {
		return true
	}
	return false
}

// Prompt builds the resource- and count-aware question sent back to the
// user. targets is the staged target count, already resolved.
func Prompt(in intent.Intent, targets int) string {
	verb := "delete"
	if in.Operation == intent.OpUpdate {
		verb = "update"
	}
	noun := string(in.Resource)
	if targets > 1 {
		return fmt.Sprintf("⚠️ You are about to %s %d %ss. Reply \"oui\"/\"yes\" to confirm.", verb, targets, noun)
	}
	return fmt.Sprintf("⚠️ You are about to %s this %s. Reply \"oui\"/\"yes\" to confirm.", verb, noun)
}

// IsAffirmative matches the fixed confirmation vocabulary, case-insensitive
// and trimmed.
func IsAffirmative(reply string) bool {
	return affirmations[strings.ToLower(strings.TrimSpace(reply))]
}
