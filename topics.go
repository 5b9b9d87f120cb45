package flash

import (
	"regexp"
	"sort"
	"strings"
)

const maxTopics = 5

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// commonWords are tokens excluded from topic extraction. Tokens of four
// characters or fewer are dropped before this filter applies, so only
// longer filler words need to be listed.
var commonWords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true,
	"against": true, "along": true, "among": true, "around": true,
	"because": true, "before": true, "being": true, "below": true,
	"between": true, "could": true, "doing": true, "during": true,
	"every": true, "first": true, "further": true, "having": true,
	"here": true, "however": true, "might": true, "other": true,
	"others": true, "should": true, "since": true, "still": true,
	"their": true, "theirs": true, "there": true, "these": true,
	"thing": true, "things": true, "those": true, "through": true,
	"under": true, "until": true, "using": true, "where": true,
	"which": true, "while": true, "whose": true, "would": true,
	"really": true, "something": true, "anything": true, "everything": true,
}

// StripTags removes all markup from an HTML string and collapses the
// remaining whitespace to single spaces.
func StripTags(doc string) string {
	text := tagRe.ReplaceAllString(doc, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractTopics returns up to five salient keywords from an HTML document,
// ranked by frequency with first-seen order breaking ties. Deterministic,
// no external calls. Returns an empty slice for content-free documents;
// callers treat that as "skip augmentation", not an error.
func ExtractTopics(doc string) []string {
	text := strings.ToLower(StripTags(doc))
	if text == "" {
		return []string{}
	}

	counts := make(map[string]int)
	var order []string
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, `.,!?;:()[]{}"'`)
		if len(token) <= 4 || commonWords[token] {
			continue
		}
		if counts[token] == 0 {
			order = append(order, token)
		}
		counts[token]++
	}

	// Stable sort preserves first-seen order among equal counts.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > maxTopics {
		order = order[:maxTopics]
	}
	if order == nil {
		order = []string{}
	}
	return order
}

// wordSet splits text into a lowercase set of words, trimming punctuation.
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, `.,!?;:()[]{}"'`)
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// overlapRatio returns the fraction of words in phrase that appear in the
// target word set, in [0,1].
func overlapRatio(phrase string, target map[string]bool) float64 {
	words := strings.Fields(strings.ToLower(phrase))
	if len(words) == 0 {
		return 0
	}
	matched := 0
	for _, w := range words {
		w = strings.Trim(w, `.,!?;:()[]{}"'`)
		if w != "" && target[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}
