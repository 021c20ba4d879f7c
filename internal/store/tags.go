package store

import "strings"

// stopwords mirrors the original implementation's IsStopWord table verbatim
// so that tag extraction produces the same semantic tags for the same memo
// text.
var stopwords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "against": true,
	"all": true, "and": true, "any": true, "because": true, "been": true,
	"before": true, "being": true, "below": true, "between": true, "both": true,
	"but": true, "could": true, "did": true, "does": true, "doing": true,
	"down": true, "during": true, "each": true, "few": true, "for": true,
	"from": true, "further": true, "had": true, "has": true, "have": true,
	"having": true, "here": true, "how": true, "into": true, "its": true,
	"just": true, "more": true, "most": true, "now": true, "off": true,
	"once": true, "only": true, "other": true, "ought": true, "our": true,
	"ours": true, "out": true, "own": true, "same": true, "she": true,
	"should": true, "some": true, "such": true, "than": true, "that": true,
	"the": true, "their": true, "theirs": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "those": true,
	"through": true, "too": true, "under": true, "until": true, "very": true,
	"was": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "who": true, "whom": true, "why": true,
	"with": true, "would": true, "you": true, "your": true, "yours": true,
	"yourself": true, "yourselves": true,
}

// isStopword reports whether word (already lowercased) is a stopword.
func isStopword(word string) bool {
	return stopwords[word]
}

const tagSeparators = " \t\n\r.,;:()[]{}<>\"'-"

// extractTags lowercases text, splits on whitespace and punctuation, and
// keeps tokens longer than three characters that are not stopwords,
// deduplicating while preserving first-seen order (spec §4.5 memo tools).
func extractTags(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return strings.ContainsRune(tagSeparators, r)
	})

	seen := make(map[string]bool, len(fields))
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 3 || isStopword(f) || seen[f] {
			continue
		}
		seen[f] = true
		tags = append(tags, f)
	}
	return tags
}
