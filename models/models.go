package models

import "time"

// StyleTokens is the flat bundle of design variables used when rendering
// generated fragments. Any empty field falls back to a hard-coded default
// at render time; the pipeline never mutates these.
type StyleTokens struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
	BorderColor     string `json:"borderColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
	AccentColor     string `json:"accentColor,omitempty"`
	FontFamily      string `json:"fontFamily,omitempty"`
}

// Priority ranks a suggestion for placement. Higher priorities are
// inserted first so they win contested positions.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns a sortable weight for the priority (lower sorts first).
// Unknown values rank below "low".
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// PlaceholderFragment is a generated unit of HTML ready to be spliced into
// a document. At most one live fragment per kind exists in a document at a
// time: older fragments carrying the same marker class are removed before
// new ones are inserted.
type PlaceholderFragment struct {
	ID       string   `json:"id"`       // "<kind>-placeholder-<n>"
	Kind     string   `json:"kind"`     // image|video|opinion|product|faq|citations
	Position string   `json:"position"` // locator descriptor, e.g. "after_paragraph_2"
	Context  string   `json:"context"`
	Priority Priority `json:"priority"`
	HTML     string   `json:"html"`
}

// FAQItem is one question/answer pair suggested by the oracle.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Citation is one suggested external source.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Domain  string `json:"domain"`
	Context string `json:"context,omitempty"`
}

// LinkSuggestion is the oracle's raw internal-linking proposal: a phrase in
// the document to turn into a link and the anchor text to use.
type LinkSuggestion struct {
	TextToLink string `json:"textToLink"`
	AnchorText string `json:"anchorText"`
	Reason     string `json:"reason,omitempty"`
}

// InternalLink is an accepted internal link after relevance matching.
type InternalLink struct {
	AnchorText  string  `json:"anchorText"`
	TargetSlug  string  `json:"targetSlug"`
	TargetTitle string  `json:"targetTitle"`
	Score       float64 `json:"score"`
}

// PlaceholderSuggestion is the oracle's raw proposal for a media or text
// placeholder, prior to HTML rendering.
type PlaceholderSuggestion struct {
	Description string   `json:"description"`
	Position    string   `json:"position"`
	Context     string   `json:"context"`
	Priority    Priority `json:"priority"`
}

// ExecutionLogRecord is one append-only audit row per pipeline invocation,
// written on both success and failure paths.
type ExecutionLogRecord struct {
	ID              string    `json:"id"`
	PostID          string    `json:"post_id"`
	FeatureType     string    `json:"feature_type"`
	Success         bool      `json:"success"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	TokensUsed      int       `json:"tokens_used"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PublishedPage is a read-only snapshot of one of the tenant's other
// published documents, used as an internal-link candidate.
type PublishedPage struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Content     string    `json:"content"`
	CreatedDate time.Time `json:"created_date"`
}

// FlashRequest is the uniform request body shared by every flash endpoint.
// Count is optional; zero means "use the feature default".
type FlashRequest struct {
	PostID     string       `json:"postId"`
	Content    string       `json:"content"`
	UserName   string       `json:"userName"`
	UserStyles *StyleTokens `json:"userStyles,omitempty"`
	Count      int          `json:"count,omitempty"`
}
