// Package flash implements the HTML content-augmentation pipeline: a set
// of stateless transforms that analyze a post's HTML, ask an injected
// oracle for suggestions, and splice styled fragments back into the
// document at structurally located positions.
package flash

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zombar/flash/metrics"
	"github.com/zombar/flash/models"
	"github.com/zombar/flash/oracle"
	"github.com/zombar/flash/search"
)

// Feature types recorded in the execution log, one per flash function.
const (
	FeatureCleanHTML     = "clean-html"
	FeatureFAQ           = "faq"
	FeatureCitations     = "citations"
	FeatureInternalLinks = "internal-links"
	FeatureSuggestPrefix = "suggest-" // + kind + "s"
)

// Placeholder kinds and their default suggestion counts.
const (
	KindImage   = "image"
	KindVideo   = "video"
	KindOpinion = "opinion"
	KindProduct = "product"
)

var defaultKindCounts = map[string]int{
	KindImage:   2,
	KindVideo:   3,
	KindOpinion: 6,
	KindProduct: 1,
}

// Config contains pipeline configuration.
type Config struct {
	OracleTimeout      time.Duration
	SearchTimeout      time.Duration
	LinkScoreThreshold float64 // minimum relevance for an internal link (0.0-1.0)
	MaxInternalLinks   int
	MaxCitations       int
	PublishedPageLimit int // size of the internal-link candidate snapshot
}

// DefaultConfig returns default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		OracleTimeout:      60 * time.Second,
		SearchTimeout:      10 * time.Second,
		LinkScoreThreshold: 0.3,
		MaxInternalLinks:   5,
		MaxCitations:       7,
		PublishedPageLimit: 20,
	}
}

// Store defines the database operations the pipeline needs. All writes are
// best-effort audit side effects; a nil Store disables them.
type Store interface {
	RecordExecution(rec *models.ExecutionLogRecord) error
	SavePlaceholders(postID string, fragments []models.PlaceholderFragment) error
	RecentPublishedPosts(userName, excludePostID string, limit int) ([]models.PublishedPage, error)
	StylesByUser(userName string) (*models.StyleTokens, error)
}

// Snapshots archives pre-augmentation HTML so a mutated document can
// always be recovered. Best-effort; nil disables archiving.
type Snapshots interface {
	SaveSnapshot(postID string, content []byte) (string, error)
}

// Engine runs the flash pipeline. One Engine serves all tenants; each
// invocation is stateless and safe to run in parallel with any other.
type Engine struct {
	config          Config
	oracle          oracle.Client
	searcher        search.Searcher
	store           Store
	snapshots       Snapshots
	oracleSemaphore chan struct{}
}

// New creates an Engine. oracleClient, searcher, store, and snapshots may
// each be nil: the pipeline degrades to its deterministic fallbacks.
func New(config Config, oracleClient oracle.Client, searcher search.Searcher, store Store, snapshots Snapshots) *Engine {
	// Bound concurrent oracle calls to avoid overloading the model
	// gateway during batch runs.
	const maxConcurrentOracleRequests = 3

	return &Engine{
		config:          config,
		oracle:          oracleClient,
		searcher:        searcher,
		store:           store,
		snapshots:       snapshots,
		oracleSemaphore: make(chan struct{}, maxConcurrentOracleRequests),
	}
}

func (e *Engine) acquireOracleSlot(ctx context.Context) error {
	select {
	case e.oracleSemaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) releaseOracleSlot() {
	<-e.oracleSemaphore
}

// suggest sends one prompt to the oracle under the concurrency semaphore
// and the configured timeout.
func (e *Engine) suggest(ctx context.Context, prompt string) (oracle.Response, error) {
	if e.oracle == nil {
		return oracle.Response{}, errors.New("oracle not configured")
	}
	if err := e.acquireOracleSlot(ctx); err != nil {
		return oracle.Response{}, err
	}
	defer e.releaseOracleSlot()

	ctx, cancel := context.WithTimeout(ctx, e.config.OracleTimeout)
	defer cancel()
	return e.oracle.Suggest(ctx, prompt)
}

// cleanJSON strips markdown code fences some models wrap around their
// output, leaving the bare JSON payload.
func cleanJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}
	return strings.TrimSpace(raw)
}

// stylesFor resolves the style tokens for a request: explicit request
// styles win, then the tenant's saved styles, then hard-coded defaults.
func (e *Engine) stylesFor(req models.FlashRequest) models.StyleTokens {
	if req.UserStyles != nil {
		return resolveStyles(req.UserStyles)
	}
	if e.store != nil && req.UserName != "" {
		st, err := e.store.StylesByUser(req.UserName)
		if err != nil {
			log.Printf("Failed to load styles for %s, using defaults: %v", req.UserName, err)
		} else if st != nil {
			return resolveStyles(st)
		}
	}
	return resolveStyles(nil)
}

// finish writes the audit record and metrics for one invocation. Log
// write failures are reported and swallowed; they never fail the caller.
func (e *Engine) finish(postID, feature string, start time.Time, tokensUsed int, runErr error) {
	elapsed := time.Since(start)

	outcome := "success"
	errMsg := ""
	if runErr != nil {
		outcome = "failure"
		errMsg = runErr.Error()
	}
	metrics.FlashInvocations.WithLabelValues(feature, outcome).Inc()
	metrics.FlashTokensUsed.WithLabelValues(feature).Add(float64(tokensUsed))
	metrics.FlashDuration.WithLabelValues(feature).Observe(elapsed.Seconds())

	if e.store == nil {
		return
	}
	rec := &models.ExecutionLogRecord{
		ID:              uuid.New().String(),
		PostID:          postID,
		FeatureType:     feature,
		Success:         runErr == nil,
		ExecutionTimeMs: elapsed.Milliseconds(),
		TokensUsed:      tokensUsed,
		ErrorMessage:    errMsg,
		CreatedAt:       time.Now(),
	}
	if err := e.store.RecordExecution(rec); err != nil {
		log.Printf("Failed to write execution log for %s/%s: %v", postID, feature, err)
	}
}

// archive stores the pre-augmentation document. Best-effort.
func (e *Engine) archive(postID, original string) {
	if e.snapshots == nil {
		return
	}
	if _, err := e.snapshots.SaveSnapshot(postID, []byte(original)); err != nil {
		log.Printf("Failed to archive snapshot for %s: %v", postID, err)
	}
}

// savePlaceholders persists emitted fragments. Best-effort.
func (e *Engine) savePlaceholders(postID string, fragments []models.PlaceholderFragment) {
	if e.store == nil || len(fragments) == 0 {
		return
	}
	if err := e.store.SavePlaceholders(postID, fragments); err != nil {
		log.Printf("Failed to save placeholders for %s: %v", postID, err)
	}
}
