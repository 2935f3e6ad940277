package keys

import (
	"sort"
	"strings"
)

// BattleKey produces the canonical battle identifier for two players: the
// sanitized IDs sorted and joined with "_vs_". Both sides compute the same
// key independently, and the lexicographically smaller ID is the host.
func BattleKey(playerA, playerB string) string {
	ids := []string{Sanitize(playerA), Sanitize(playerB)}
	sort.Strings(ids)
	return ids[0] + "_vs_" + ids[1]
}

// HostID returns the lexicographically smaller of the two player IDs, the
// side designated authoritative for turn resolution.
func HostID(playerA, playerB string) string {
	if playerA < playerB {
		return playerA
	}
	return playerB
}

// Sanitize makes an identifier safe for use as a store path segment.
func Sanitize(id string) string {
	s := strings.TrimSpace(id)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
