package utils

import "strings"

// Canonical status keys mirror access_requests.status.
const (
	StatusKeySubmitted          = "submitted"
	StatusKeyHODReviewed        = "hod_reviewed"
	StatusKeyDivisionalApproved = "divisional_approved"
	StatusKeyDivisionalRejected = "divisional_rejected"
	StatusKeyPendingICTDirector = "pending_ict_director"
	StatusKeyDictApproved       = "dict_approved"
	StatusKeyDictRejected       = "dict_rejected"
	StatusKeyRejected           = "rejected"
)

var (
	statusKeySynonyms = map[string][]string{
		StatusKeySubmitted: {
			"pending",
			"new",
		},
		StatusKeyHODReviewed: {
			"hod_approved",
			"hod_recommended",
			"head_reviewed",
		},
		StatusKeyDivisionalApproved: {
			"divisional_recommended",
			"director_approved",
		},
		StatusKeyDivisionalRejected: {
			"divisional_not_recommended",
			"director_rejected",
		},
		StatusKeyPendingICTDirector: {
			"forwarded",
			"forward_to_ict",
			"pending_dict",
		},
		StatusKeyDictApproved: {
			"ict_approved",
			"ict_director_approved",
			"granted",
		},
		StatusKeyDictRejected: {
			"ict_rejected",
			"ict_director_rejected",
		},
		StatusKeyRejected: {
			"declined",
			"cancelled",
		},
	}
	statusAliasToCanonical = buildStatusAliasMap()
)

func buildStatusAliasMap() map[string]string {
	aliasMap := make(map[string]string)
	for canonical, synonyms := range statusKeySynonyms {
		aliasMap[normalizeStatusKey(canonical)] = canonical
		for _, alias := range synonyms {
			if normalized := normalizeStatusKey(alias); normalized != "" {
				aliasMap[normalized] = canonical
			}
		}
	}
	return aliasMap
}

func normalizeStatusKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "-", "_")
	return strings.ReplaceAll(key, " ", "_")
}

// CanonicalStatusKey maps client spellings of a status to the stored key.
// Unknown input is returned normalized so the caller can reject it.
func CanonicalStatusKey(key string) string {
	normalized := normalizeStatusKey(key)
	if canonical, ok := statusAliasToCanonical[normalized]; ok {
		return canonical
	}
	return normalized
}
