package flash

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/zombar/flash/models"
)

// FAQResult is the outcome of an FAQ invocation.
type FAQResult struct {
	UpdatedContent string
	Suggestions    []models.FAQItem
	TokensUsed     int
	Message        string
}

const faqPrompt = `Generate 3-5 frequently asked questions with concise answers for the following blog article.
Base every question on information actually present in the article.

Article text:
%s

Respond with JSON in exactly this shape:
{"faqs": [{"question": "...", "answer": "..."}]}`

// FAQ asks the oracle for question/answer pairs and splices an accordion
// block before the article's conclusion. Oracle failures and empty
// articles are not errors: the document comes back unchanged.
func (e *Engine) FAQ(ctx context.Context, req models.FlashRequest) (res *FAQResult, err error) {
	start := time.Now()
	tokens := 0
	defer func() { e.finish(req.PostID, FeatureFAQ, start, tokens, err) }()

	text := StripTags(req.Content)
	if text == "" {
		return &FAQResult{UpdatedContent: req.Content, Suggestions: []models.FAQItem{}, Message: "no content to analyze"}, nil
	}

	resp, oracleErr := e.suggest(ctx, fmt.Sprintf(faqPrompt, text))
	if oracleErr != nil {
		log.Printf("FAQ oracle call failed for %s, returning content unchanged: %v", req.PostID, oracleErr)
		return &FAQResult{UpdatedContent: req.Content, Suggestions: []models.FAQItem{}, Message: "suggestions unavailable"}, nil
	}
	tokens = resp.TokensUsed

	var payload struct {
		FAQs []models.FAQItem `json:"faqs"`
	}
	if jsonErr := json.Unmarshal([]byte(cleanJSON(resp.Raw)), &payload); jsonErr != nil {
		log.Printf("FAQ oracle returned malformed JSON for %s: %v", req.PostID, jsonErr)
		payload.FAQs = nil
	}

	items := payload.FAQs[:0:0]
	for _, item := range payload.FAQs {
		if item.Question != "" && item.Answer != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return &FAQResult{UpdatedContent: req.Content, Suggestions: []models.FAQItem{}, Message: "no usable suggestions"}, nil
	}

	fragment := renderFAQ(items, e.stylesFor(req))

	updated := StripFragments(req.Content, MarkerFAQ)
	offset, found := indexDocument(updated).faqInsertionOffset()
	updated = InsertAt(updated, offset, found, fragment)

	e.archive(req.PostID, req.Content)

	return &FAQResult{
		UpdatedContent: updated,
		Suggestions:    items,
		TokensUsed:     tokens,
	}, nil
}
