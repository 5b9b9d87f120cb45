package flash

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/zombar/flash/models"
)

// PlaceholderResult is the outcome of a suggest-images / suggest-videos /
// suggest-opinions / suggest-product invocation.
type PlaceholderResult struct {
	UpdatedContent      string
	Fragments           []models.PlaceholderFragment
	PlaceholdersCreated int
	TokensUsed          int
	Message             string
}

var kindGuidance = map[string]string{
	KindImage:   "images or photographs that would illustrate the surrounding text",
	KindVideo:   "embedded videos that would complement the surrounding text",
	KindOpinion: "short opinion or commentary asides from the author",
	KindProduct: "a product recommendation relevant to the article",
}

const placeholderPrompt = `Suggest up to %d places in the following blog article to add %s.
For each, give a one-line description of what belongs there, a position, the sentence it relates to, and a priority (high, medium or low).
Positions must be one of: after_paragraph_N (N counting from 1), before_section_N, mid_content, end_content.

Article text:
%s

Respond with JSON in exactly this shape:
{"suggestions": [{"description": "...", "position": "after_paragraph_1", "context": "...", "priority": "high"}]}`

// SuggestPlaceholders asks the oracle where content of the given kind
// belongs and inserts a styled placeholder block at each accepted
// position. Suggestions with unresolvable positions are dropped, the
// rest are ordered by priority and capped at the requested count.
// Placeholders from a previous run of the same kind are replaced, never
// duplicated.
func (e *Engine) SuggestPlaceholders(ctx context.Context, kind string, req models.FlashRequest) (res *PlaceholderResult, err error) {
	feature := FeatureSuggestPrefix + kind + "s"
	if kind == KindProduct {
		feature = FeatureSuggestPrefix + kind
	}
	start := time.Now()
	tokens := 0
	defer func() { e.finish(req.PostID, feature, start, tokens, err) }()

	guidance, ok := kindGuidance[kind]
	if !ok {
		err = fmt.Errorf("unknown placeholder kind %q", kind)
		return nil, err
	}

	count := req.Count
	if count <= 0 {
		count = defaultKindCounts[kind]
	}

	text := StripTags(req.Content)
	if text == "" {
		return &PlaceholderResult{UpdatedContent: req.Content, Fragments: []models.PlaceholderFragment{}, Message: "no content to analyze"}, nil
	}

	resp, oracleErr := e.suggest(ctx, fmt.Sprintf(placeholderPrompt, count, guidance, text))
	if oracleErr != nil {
		log.Printf("Suggest-%s oracle call failed for %s, returning content unchanged: %v", kind, req.PostID, oracleErr)
		return &PlaceholderResult{UpdatedContent: req.Content, Fragments: []models.PlaceholderFragment{}, Message: "suggestions unavailable"}, nil
	}
	tokens = resp.TokensUsed

	var payload struct {
		Suggestions []models.PlaceholderSuggestion `json:"suggestions"`
	}
	if jsonErr := json.Unmarshal([]byte(cleanJSON(resp.Raw)), &payload); jsonErr != nil {
		log.Printf("Suggest-%s oracle returned malformed JSON for %s: %v", kind, req.PostID, jsonErr)
		payload.Suggestions = nil
	}

	marker := MarkerForKind(kind)
	base := StripFragments(req.Content, marker)

	// Validate positions against the stripped document before ordering.
	idx := indexDocument(base)
	var accepted []models.PlaceholderSuggestion
	for _, s := range payload.Suggestions {
		if s.Description == "" {
			continue
		}
		if _, ok := idx.resolve(s.Position); !ok {
			continue
		}
		accepted = append(accepted, s)
	}
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Priority.Rank() < accepted[j].Priority.Rank()
	})
	if len(accepted) > count {
		accepted = accepted[:count]
	}

	if len(accepted) == 0 {
		return &PlaceholderResult{UpdatedContent: req.Content, Fragments: []models.PlaceholderFragment{}, TokensUsed: tokens, Message: "no usable suggestions"}, nil
	}

	styles := e.stylesFor(req)
	updated := base
	fragments := make([]models.PlaceholderFragment, 0, len(accepted))
	for i, s := range accepted {
		frag := renderPlaceholder(kind, i+1, s, styles)
		// Re-index after every insertion so later descriptors resolve
		// against the document as it now stands.
		offset, ok := ResolvePosition(updated, s.Position)
		updated = InsertAt(updated, offset, ok, frag.HTML)
		fragments = append(fragments, frag)
	}

	e.savePlaceholders(req.PostID, fragments)
	e.archive(req.PostID, req.Content)

	return &PlaceholderResult{
		UpdatedContent:      updated,
		Fragments:           fragments,
		PlaceholdersCreated: len(fragments),
		TokensUsed:          tokens,
	}, nil
}
