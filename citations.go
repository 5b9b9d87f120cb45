package flash

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/zombar/flash/models"
	"github.com/zombar/flash/search"
)

// CitationsResult is the outcome of a citations invocation. SearchUsed is
// false when the deterministic fallback sources were substituted.
type CitationsResult struct {
	UpdatedContent string
	Citations      []models.Citation
	TokensUsed     int
	SearchUsed     bool
	Message        string
}

// searchQuerySuffix is appended to the topic query for every citation
// lookup.
const searchQuerySuffix = "authoritative sources research"

// Citations searches for authoritative sources matching the article's top
// topics and splices a sources block after the last paragraph. When the
// search backend is missing or erroring, deterministic placeholder
// sources derived from the same topics are used instead, so this feature
// never hard-fails on an external outage.
func (e *Engine) Citations(ctx context.Context, req models.FlashRequest) (res *CitationsResult, err error) {
	start := time.Now()
	defer func() { e.finish(req.PostID, FeatureCitations, start, 0, err) }()

	topics := ExtractTopics(req.Content)
	if len(topics) == 0 {
		return &CitationsResult{UpdatedContent: req.Content, Citations: []models.Citation{}, Message: "no content to analyze"}, nil
	}

	queryTopics := topics
	if len(queryTopics) > 3 {
		queryTopics = queryTopics[:3]
	}
	query := strings.Join(queryTopics, " ") + " " + searchQuerySuffix

	results, searchUsed := e.searchSources(ctx, query, topics)
	if len(results) > e.config.MaxCitations {
		results = results[:e.config.MaxCitations]
	}

	citations := make([]models.Citation, 0, len(results))
	for _, r := range results {
		citations = append(citations, models.Citation{
			URL:     r.URL,
			Title:   r.Title,
			Domain:  domainOf(r.URL),
			Context: r.Snippet,
		})
	}
	if len(citations) == 0 {
		return &CitationsResult{UpdatedContent: req.Content, Citations: citations, Message: "no sources found"}, nil
	}

	fragment := renderCitations(citations, e.stylesFor(req))

	updated := StripFragments(req.Content, MarkerCitations)
	offset, found := indexDocument(updated).resolve(descEndContent)
	updated = InsertAt(updated, offset, found, fragment)

	e.archive(req.PostID, req.Content)

	return &CitationsResult{
		UpdatedContent: updated,
		Citations:      citations,
		SearchUsed:     searchUsed,
	}, nil
}

// searchSources runs the external search with a bounded timeout, falling
// back to deterministic topic-derived sources on any failure.
func (e *Engine) searchSources(ctx context.Context, query string, topics []string) ([]search.Result, bool) {
	if e.searcher == nil {
		return search.StaticSources(topics, e.config.MaxCitations), false
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.SearchTimeout)
	defer cancel()

	results, err := e.searcher.Search(ctx, query, e.config.MaxCitations)
	if err != nil || len(results) == 0 {
		if err != nil {
			log.Printf("Citation search failed, using fallback sources: %v", err)
		}
		return search.StaticSources(topics, e.config.MaxCitations), false
	}
	return results, true
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
