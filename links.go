package flash

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zombar/flash/models"
)

// LinksResult is the outcome of an internal-links invocation.
type LinksResult struct {
	UpdatedContent string
	LinksAdded     []models.InternalLink
	TokensUsed     int
	Message        string
}

const linksPrompt = `Suggest up to %d phrases in the following blog article that would benefit from an internal link to a related article, with natural anchor text for each.
Only suggest phrases that appear verbatim in the article text.

Article text:
%s

Respond with JSON in exactly this shape:
{"links": [{"textToLink": "...", "anchorText": "..."}]}`

// InternalLinks asks the oracle for linkable phrases, matches each against
// the tenant's recent published pages by relevance, and wraps the first
// occurrence of every accepted phrase in a link. A page is accepted only
// when its relevance score exceeds the configured threshold; no target
// page and no anchor text is used twice within one run.
func (e *Engine) InternalLinks(ctx context.Context, req models.FlashRequest) (res *LinksResult, err error) {
	start := time.Now()
	tokens := 0
	defer func() { e.finish(req.PostID, FeatureInternalLinks, start, tokens, err) }()

	topics := ExtractTopics(req.Content)
	if len(topics) == 0 {
		return &LinksResult{UpdatedContent: req.Content, LinksAdded: []models.InternalLink{}, Message: "no content to analyze"}, nil
	}

	var pages []models.PublishedPage
	if e.store != nil {
		pages, err = e.store.RecentPublishedPosts(req.UserName, req.PostID, e.config.PublishedPageLimit)
		if err != nil {
			err = fmt.Errorf("failed to load published pages: %w", err)
			return nil, err
		}
	}
	if len(pages) == 0 {
		return &LinksResult{UpdatedContent: req.Content, LinksAdded: []models.InternalLink{}, Message: "no candidate pages"}, nil
	}

	resp, oracleErr := e.suggest(ctx, fmt.Sprintf(linksPrompt, e.config.MaxInternalLinks*2, StripTags(req.Content)))
	if oracleErr != nil {
		log.Printf("Internal-links oracle call failed for %s, returning content unchanged: %v", req.PostID, oracleErr)
		return &LinksResult{UpdatedContent: req.Content, LinksAdded: []models.InternalLink{}, Message: "suggestions unavailable"}, nil
	}
	tokens = resp.TokensUsed

	var payload struct {
		Links []models.LinkSuggestion `json:"links"`
	}
	if jsonErr := json.Unmarshal([]byte(cleanJSON(resp.Raw)), &payload); jsonErr != nil {
		log.Printf("Internal-links oracle returned malformed JSON for %s: %v", req.PostID, jsonErr)
		payload.Links = nil
	}

	candidates := newLinkCandidates(pages, topics)
	styles := e.stylesFor(req)

	// Accumulator sets are scoped to this invocation only.
	usedPages := map[string]bool{}
	usedAnchors := map[string]bool{}
	var added []models.InternalLink

	updated := StripInternalLinks(req.Content)
	for _, s := range payload.Links {
		if len(added) >= e.config.MaxInternalLinks {
			break
		}
		if s.TextToLink == "" || s.AnchorText == "" || usedAnchors[s.AnchorText] {
			continue
		}

		best, bestScore := candidates.bestMatch(s, usedPages)
		if best == nil || bestScore <= e.config.LinkScoreThreshold {
			continue
		}

		idx := findTextOccurrence(updated, s.TextToLink)
		if idx < 0 {
			continue
		}

		link := renderInternalLink(updated[idx:idx+len(s.TextToLink)], s.AnchorText, best.Slug, styles)
		updated = updated[:idx] + link + updated[idx+len(s.TextToLink):]

		usedPages[best.ID] = true
		usedAnchors[s.AnchorText] = true
		added = append(added, models.InternalLink{
			AnchorText:  s.AnchorText,
			TargetSlug:  best.Slug,
			TargetTitle: best.Title,
			Score:       bestScore,
		})
	}

	if len(added) == 0 {
		return &LinksResult{UpdatedContent: req.Content, LinksAdded: []models.InternalLink{}, TokensUsed: tokens, Message: "no links added"}, nil
	}

	e.archive(req.PostID, req.Content)

	return &LinksResult{
		UpdatedContent: updated,
		LinksAdded:     added,
		TokensUsed:     tokens,
	}, nil
}

// linkCandidates precomputes per-page word and topic sets once per run.
type linkCandidates struct {
	pages      []models.PublishedPage
	titleWords []map[string]bool
	bodyWords  []map[string]bool
	topicHits  []float64 // topic-overlap ratio against the current document
}

func newLinkCandidates(pages []models.PublishedPage, docTopics []string) *linkCandidates {
	c := &linkCandidates{
		pages:      pages,
		titleWords: make([]map[string]bool, len(pages)),
		bodyWords:  make([]map[string]bool, len(pages)),
		topicHits:  make([]float64, len(pages)),
	}
	for i, p := range pages {
		c.titleWords[i] = wordSet(p.Title)
		c.bodyWords[i] = wordSet(StripTags(p.Content))
		c.topicHits[i] = topicOverlap(docTopics, ExtractTopics(p.Content))
	}
	return c
}

// bestMatch scores a suggestion against every not-yet-used page and
// returns the highest scorer. The weights fix how much each signal
// contributes: 0.4 phrase-vs-title, 0.3 anchor-vs-title, 0.2 topic
// overlap, 0.1 phrase-vs-body.
func (c *linkCandidates) bestMatch(s models.LinkSuggestion, usedPages map[string]bool) (*models.PublishedPage, float64) {
	var best *models.PublishedPage
	bestScore := 0.0
	for i := range c.pages {
		page := &c.pages[i]
		if usedPages[page.ID] {
			continue
		}
		score := 0.4*overlapRatio(s.TextToLink, c.titleWords[i]) +
			0.3*overlapRatio(s.AnchorText, c.titleWords[i]) +
			0.2*c.topicHits[i] +
			0.1*overlapRatio(s.TextToLink, c.bodyWords[i])
		if score > bestScore {
			best = page
			bestScore = score
		}
	}
	return best, bestScore
}

// topicOverlap returns the fraction of document topics present in the
// candidate page's topics, in [0,1].
func topicOverlap(docTopics, pageTopics []string) float64 {
	if len(docTopics) == 0 {
		return 0
	}
	set := make(map[string]bool, len(pageTopics))
	for _, t := range pageTopics {
		set[t] = true
	}
	matched := 0
	for _, t := range docTopics {
		if set[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(docTopics))
}

// findTextOccurrence returns the index of the first occurrence of text
// that sits in document prose: outside any tag and outside any existing
// anchor element.
func findTextOccurrence(doc, text string) int {
	from := 0
	for {
		idx := strings.Index(doc[from:], text)
		if idx < 0 {
			return -1
		}
		idx += from
		if !insideTag(doc, idx) && !insideAnchor(doc, idx) {
			return idx
		}
		from = idx + 1
	}
}

func insideTag(doc string, idx int) bool {
	lastOpen := strings.LastIndex(doc[:idx], "<")
	lastClose := strings.LastIndex(doc[:idx], ">")
	return lastOpen > lastClose
}

func insideAnchor(doc string, idx int) bool {
	before := strings.ToLower(doc[:idx])
	opens := strings.Count(before, "<a ") + strings.Count(before, "<a>")
	closes := strings.Count(before, "</a>")
	return opens > closes
}
