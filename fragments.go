package flash

import (
	"fmt"
	"html"
	"strings"

	"github.com/zombar/flash/models"
	"github.com/zombar/flash/slug"
)

// Hard-coded style fallbacks used when a tenant has no saved tokens.
const (
	defaultBackgroundColor = "#f8f9fa"
	defaultBorderColor     = "#e9ecef"
	defaultTextColor       = "#212529"
	defaultAccentColor     = "#007bff"
	defaultFontFamily      = "inherit"
)

// resolveStyles fills any empty style token with its default.
func resolveStyles(tokens *models.StyleTokens) models.StyleTokens {
	resolved := models.StyleTokens{
		BackgroundColor: defaultBackgroundColor,
		BorderColor:     defaultBorderColor,
		TextColor:       defaultTextColor,
		AccentColor:     defaultAccentColor,
		FontFamily:      defaultFontFamily,
	}
	if tokens == nil {
		return resolved
	}
	if tokens.BackgroundColor != "" {
		resolved.BackgroundColor = tokens.BackgroundColor
	}
	if tokens.BorderColor != "" {
		resolved.BorderColor = tokens.BorderColor
	}
	if tokens.TextColor != "" {
		resolved.TextColor = tokens.TextColor
	}
	if tokens.AccentColor != "" {
		resolved.AccentColor = tokens.AccentColor
	}
	if tokens.FontFamily != "" {
		resolved.FontFamily = tokens.FontFamily
	}
	return resolved
}

func blockStyle(st models.StyleTokens) string {
	return fmt.Sprintf(
		"background-color: %s; border: 1px solid %s; border-radius: 8px; padding: 16px; margin: 16px 0; color: %s; font-family: %s;",
		st.BackgroundColor, st.BorderColor, st.TextColor, st.FontFamily,
	)
}

// priorityBadge renders the visible priority marker carried by every
// placeholder fragment.
func priorityBadge(p models.Priority, accent string) string {
	return fmt.Sprintf(
		`<span class="flash-priority flash-priority-%s" style="display: inline-block; font-size: 11px; font-weight: 600; text-transform: uppercase; color: %s; margin-bottom: 8px;">%s priority</span>`,
		p, accent, p,
	)
}

// renderPlaceholder renders one media/text placeholder fragment. The output
// is fully self-closed so later clean-html passes have nothing to repair.
func renderPlaceholder(kind string, n int, s models.PlaceholderSuggestion, st models.StyleTokens) models.PlaceholderFragment {
	id := fmt.Sprintf("%s-placeholder-%d", kind, n)
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="%s" id="%s" style="%s">`, MarkerForKind(kind), id, blockStyle(st))
	b.WriteString(priorityBadge(s.Priority, st.AccentColor))
	fmt.Fprintf(&b, `<p style="margin: 0 0 4px 0; font-weight: 600;">Suggested %s</p>`, kind)
	fmt.Fprintf(&b, `<p style="margin: 0;">%s</p>`, html.EscapeString(s.Description))
	if s.Context != "" {
		fmt.Fprintf(&b, `<p style="margin: 8px 0 0 0; font-size: 13px; opacity: 0.8;">%s</p>`, html.EscapeString(s.Context))
	}
	b.WriteString(`</div>`)

	return models.PlaceholderFragment{
		ID:       id,
		Kind:     kind,
		Position: s.Position,
		Context:  s.Context,
		Priority: s.Priority,
		HTML:     b.String(),
	}
}

// renderFAQ renders the FAQ block as native-HTML accordion items, each
// independently togglable and collapsed by default.
func renderFAQ(items []models.FAQItem, st models.StyleTokens) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="%s" style="%s">`, MarkerFAQ, blockStyle(st))
	fmt.Fprintf(&b, `<h2 style="margin: 0 0 12px 0;">Frequently Asked Questions</h2>`)
	for _, item := range items {
		itemID := slug.GenerateWithFallback(item.Question, "faq-item")
		fmt.Fprintf(&b,
			`<details id="faq-%s" style="border-top: 1px solid %s; padding: 8px 0;"><summary style="cursor: pointer; font-weight: 600;">%s</summary><p style="margin: 8px 0 0 0;">%s</p></details>`,
			itemID, st.BorderColor, html.EscapeString(item.Question), html.EscapeString(item.Answer),
		)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// renderCitations renders the sources block.
func renderCitations(citations []models.Citation, st models.StyleTokens) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="%s" style="%s">`, MarkerCitations, blockStyle(st))
	b.WriteString(`<h2 style="margin: 0 0 12px 0;">Sources</h2><ol style="margin: 0; padding-left: 20px;">`)
	for _, c := range citations {
		fmt.Fprintf(&b,
			`<li style="margin-bottom: 6px;"><a href="%s" target="_blank" rel="noopener noreferrer" style="color: %s;">%s</a> <span style="font-size: 12px; opacity: 0.7;">(%s)</span></li>`,
			html.EscapeString(c.URL), st.AccentColor, html.EscapeString(c.Title), html.EscapeString(c.Domain),
		)
	}
	b.WriteString(`</ol></div>`)
	return b.String()
}

// renderInternalLink wraps the matched document text in a marked link to
// another post. The visible text stays as it was found so stripping the
// link restores the document exactly; the suggested anchor phrasing goes
// into the title attribute.
func renderInternalLink(text, anchorText, targetSlug string, st models.StyleTokens) string {
	return fmt.Sprintf(
		`<a class="%s" href="/%s" title="%s" style="color: %s;">%s</a>`,
		MarkerInternalLink, targetSlug, html.EscapeString(anchorText), st.AccentColor, text,
	)
}
