package utils

import "strings"

// Fixed vocabulary mapping for the status strings external feeds send us.
// Both tables are ordered: the first matching synonym wins, so "doubtful"
// is checked before the bare "out" substring it contains.

type statusSynonym struct {
	canonical string
	substring string
}

var gameStatusSynonyms = []statusSynonym{
	{"upcoming", "scheduled"},
	{"live", "inprogress"},
	{"live", "in progress"},
	{"completed", "final"},
	{"cancelled", "postponed"},
	{"cancelled", "canceled"},
	{"cancelled", "cancelled"},
}

var injuryStatusSynonyms = []statusSynonym{
	{"Doubtful", "doubtful"},
	{"Questionable", "questionable"},
	{"Probable", "probable"},
	{"IR", "injured reserve"},
	{"IR", "ir"},
	{"PUP", "pup"},
	{"Suspended", "suspended"},
	{"Out", "out"},
}

// NormalizeGameStatus maps a raw feed status to the internal game status
// vocabulary. Unrecognized values default to "upcoming" so a renamed feed
// status never hides a game from the pipeline.
func NormalizeGameStatus(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, syn := range gameStatusSynonyms {
		if strings.Contains(lower, syn.substring) {
			return syn.canonical
		}
	}
	return "upcoming"
}

// NormalizeInjuryStatus maps a raw injury report status to the internal
// vocabulary. Empty input becomes "Unknown"; an unrecognized non-empty
// status is passed through unchanged so it can still be inspected.
func NormalizeInjuryStatus(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "Unknown"
	}
	lower := strings.ToLower(trimmed)
	for _, syn := range injuryStatusSynonyms {
		if syn.substring == "ir" {
			// "ir" is too short for substring matching; require exact.
			if lower == "ir" {
				return syn.canonical
			}
			continue
		}
		if strings.Contains(lower, syn.substring) {
			return syn.canonical
		}
	}
	return trimmed
}
