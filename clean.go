package flash

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zombar/flash/models"
)

// Issue tags reported by Analyze. Each has its own detection pattern and
// its own independent repair transform.
const (
	IssueEmptyTags           = "empty_tags"
	IssueUnclosedTags        = "unclosed_tags"
	IssueInvalidAttributes   = "invalid_attributes"
	IssueMalformedTags       = "malformed_tags"
	IssueExcessiveWhitespace = "excessive_whitespace"
	IssueNestedListIssues    = "nested_list_issues"
	IssueDuplicateAttributes = "duplicate_attributes"
	IssueBrokenLinks         = "broken_links"
	IssueHeadingHierarchy    = "heading_hierarchy"
)

// CleanResult is the outcome of a clean-html invocation.
type CleanResult struct {
	UpdatedContent string
	Issues         []string
	IssuesFixed    []string
}

// CleanHTML detects the structural defect taxonomy in a document and
// applies the matching repairs. No oracle call is involved; the transform
// is deterministic and idempotent.
func (e *Engine) CleanHTML(ctx context.Context, req models.FlashRequest) (res *CleanResult, err error) {
	start := time.Now()
	defer func() { e.finish(req.PostID, FeatureCleanHTML, start, 0, err) }()

	issues := Analyze(req.Content)
	cleaned, fixes := Repair(req.Content, issues)

	if cleaned != req.Content {
		e.archive(req.PostID, req.Content)
	}

	return &CleanResult{
		UpdatedContent: cleaned,
		Issues:         issues,
		IssuesFixed:    fixes,
	}, nil
}

// balancedTags is the whitelist checked for open/close parity.
var balancedTags = []string{"p", "div", "span", "strong", "em", "ul", "ol", "li"}

var (
	emptyTagRe     = regexp.MustCompile(`(?i)<([a-z][a-z0-9]*)(?:\s[^>]*)?>\s*</([a-z][a-z0-9]*)>`)
	eventAttrRe    = regexp.MustCompile(`(?i)\s+(?:onclick|onload)\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	styleAttrRe    = regexp.MustCompile(`(?i)(style\s*=\s*)("[^"]*"|'[^']*')`)
	danglingTagRe  = regexp.MustCompile(`(?im)<([a-z][^<>\n]*)$`)
	spaceBeforeGtRe = regexp.MustCompile(`<([^<>]*[^<>\s/])\s+>`)
	tripleNewlineRe = regexp.MustCompile(`(?:[ \t]*\n){3,}`)
	tripleSpaceRe   = regexp.MustCompile(`[ \t]{3,}`)
	interTagSpaceRe = regexp.MustCompile(`>[ \t]+<`)
	nestedListRe    = regexp.MustCompile(`(?i)(<li(?:\s[^>]*)?>[^<]*[^<\s])(<(?:ul|ol)(?:\s[^>]*)?>)`)
	anyTagRe        = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	attrRe          = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9-]*)(\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+))?`)
	emptyHrefRe     = regexp.MustCompile(`(?i)href\s*=\s*(""|'')`)
	jsHrefRe        = regexp.MustCompile(`(?i)href\s*=\s*(?:"(?:javascript:[^"]*|[^"]*void\(0\)[^"]*)"|'(?:javascript:[^']*|[^']*void\(0\)[^']*)')`)
	headingTagRe    = regexp.MustCompile(`(?i)<(/?)h([1-6])([^>]*)>`)
	openTagCountRe  = map[string]*regexp.Regexp{}
	closeTagCountRe = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range balancedTags {
		openTagCountRe[tag] = regexp.MustCompile(`(?i)<` + tag + `(\s[^>]*)?>`)
		closeTagCountRe[tag] = regexp.MustCompile(`(?i)</` + tag + `\s*>`)
	}
}

// Analyze inspects a document and returns the set of structural issue tags
// it detects. The scan is read-only and deterministic.
func Analyze(doc string) []string {
	var issues []string

	if m := emptyTagRe.FindAllStringSubmatch(doc, -1); m != nil {
		for _, pair := range m {
			if strings.EqualFold(pair[1], pair[2]) {
				issues = append(issues, IssueEmptyTags)
				break
			}
		}
	}

	for _, tag := range balancedTags {
		opens := len(openTagCountRe[tag].FindAllString(doc, -1))
		closes := len(closeTagCountRe[tag].FindAllString(doc, -1))
		if opens != closes {
			issues = append(issues, IssueUnclosedTags)
			break
		}
	}

	if eventAttrRe.MatchString(doc) || styleHasScript(doc) {
		issues = append(issues, IssueInvalidAttributes)
	}

	if danglingTagRe.MatchString(doc) || spaceBeforeGtRe.MatchString(doc) {
		issues = append(issues, IssueMalformedTags)
	}

	if tripleSpaceRe.MatchString(doc) || tripleNewlineRe.MatchString(doc) || interTagSpaceRe.MatchString(doc) {
		issues = append(issues, IssueExcessiveWhitespace)
	}

	if nestedListRe.MatchString(doc) {
		issues = append(issues, IssueNestedListIssues)
	}

	if hasDuplicateAttributes(doc) {
		issues = append(issues, IssueDuplicateAttributes)
	}

	if emptyHrefRe.MatchString(doc) || jsHrefRe.MatchString(doc) {
		issues = append(issues, IssueBrokenLinks)
	}

	if hasHeadingSkips(doc) {
		issues = append(issues, IssueHeadingHierarchy)
	}

	return issues
}

// Repair applies the matching transform for each detected issue and returns
// the cleaned document plus human-readable descriptions of the fixes.
// With no issues it returns the input unchanged apart from the closing
// flash-block deduplication pass, which always runs; Repair is idempotent.
func Repair(doc string, issues []string) (string, []string) {
	cleaned := doc
	var fixes []string
	has := func(issue string) bool {
		for _, i := range issues {
			if i == issue {
				return true
			}
		}
		return false
	}

	if has(IssueEmptyTags) {
		cleaned = removeEmptyTags(cleaned)
		fixes = append(fixes, "Removed empty tags")
	}
	if has(IssueInvalidAttributes) {
		cleaned = stripInvalidAttributes(cleaned)
		fixes = append(fixes, "Removed invalid attributes")
	}
	if has(IssueMalformedTags) {
		cleaned = danglingTagRe.ReplaceAllString(cleaned, "<$1>")
		cleaned = spaceBeforeGtRe.ReplaceAllString(cleaned, "<$1>")
		fixes = append(fixes, "Fixed malformed tags")
	}
	if has(IssueNestedListIssues) {
		cleaned = nestedListRe.ReplaceAllString(cleaned, "$1\n$2")
		fixes = append(fixes, "Fixed nested list structure")
	}
	if has(IssueDuplicateAttributes) {
		cleaned = removeDuplicateAttributes(cleaned)
		fixes = append(fixes, "Removed duplicate attributes")
	}
	if has(IssueBrokenLinks) {
		cleaned = emptyHrefRe.ReplaceAllString(cleaned, `href="#"`)
		cleaned = jsHrefRe.ReplaceAllString(cleaned, `href="#"`)
		fixes = append(fixes, "Fixed broken links")
	}
	if has(IssueHeadingHierarchy) {
		cleaned = repairHeadingHierarchy(cleaned)
		fixes = append(fixes, "Fixed heading hierarchy")
	}
	if has(IssueUnclosedTags) {
		cleaned = closeUnbalancedTags(cleaned)
		// A tag closed this way may enclose nothing; drop those pairs too.
		cleaned = removeEmptyTags(cleaned)
		fixes = append(fixes, "Closed unclosed tags")
	}
	if has(IssueExcessiveWhitespace) {
		cleaned = tripleNewlineRe.ReplaceAllString(cleaned, "\n\n")
		cleaned = tripleSpaceRe.ReplaceAllString(cleaned, " ")
		cleaned = interTagSpaceRe.ReplaceAllString(cleaned, "><")
		cleaned = strings.TrimSpace(cleaned)
		fixes = append(fixes, "Cleaned up excessive whitespace")
	}

	// Flash-block deduplication runs last regardless of detected issues.
	deduped := dedupFlashBlocks(cleaned)
	if deduped != cleaned {
		cleaned = deduped
		fixes = append(fixes, "Removed duplicate flash elements")
	}

	return cleaned, fixes
}

// removeEmptyTags deletes tag pairs that enclose only whitespace,
// repeating so a wrapper emptied by an inner removal goes too.
func removeEmptyTags(doc string) string {
	for {
		next := emptyTagRe.ReplaceAllStringFunc(doc, func(m string) string {
			sub := emptyTagRe.FindStringSubmatch(m)
			if strings.EqualFold(sub[1], sub[2]) {
				return ""
			}
			return m
		})
		if next == doc {
			return doc
		}
		doc = next
	}
}

// styleHasScript reports whether any style attribute carries a
// javascript: declaration.
func styleHasScript(doc string) bool {
	for _, m := range styleAttrRe.FindAllStringSubmatch(doc, -1) {
		if strings.Contains(strings.ToLower(m[2]), "javascript:") {
			return true
		}
	}
	return false
}

// stripInvalidAttributes removes handler attributes entirely and drops
// only the offending declarations from style attributes.
func stripInvalidAttributes(doc string) string {
	doc = eventAttrRe.ReplaceAllString(doc, "")
	return styleAttrRe.ReplaceAllStringFunc(doc, func(m string) string {
		sub := styleAttrRe.FindStringSubmatch(m)
		quoted := sub[2]
		quote, inner := quoted[:1], quoted[1:len(quoted)-1]
		if !strings.Contains(strings.ToLower(inner), "javascript:") {
			return m
		}
		var kept []string
		for _, decl := range strings.Split(inner, ";") {
			if strings.TrimSpace(decl) == "" {
				continue
			}
			if strings.Contains(strings.ToLower(decl), "javascript:") {
				continue
			}
			kept = append(kept, strings.TrimSpace(decl))
		}
		return sub[1] + quote + strings.Join(kept, "; ") + quote
	})
}

// closeUnbalancedTags appends missing closing tags at the document end for
// each under-closed whitelist tag. Over-closed tags are left alone.
func closeUnbalancedTags(doc string) string {
	var b strings.Builder
	b.WriteString(doc)
	// Inner-most first so appended closers nest sensibly.
	order := []string{"em", "strong", "span", "li", "ul", "ol", "p", "div"}
	for _, tag := range order {
		opens := len(openTagCountRe[tag].FindAllString(doc, -1))
		closes := len(closeTagCountRe[tag].FindAllString(doc, -1))
		for i := closes; i < opens; i++ {
			fmt.Fprintf(&b, "</%s>", tag)
		}
	}
	return b.String()
}

// hasDuplicateAttributes reports whether any tag repeats an attribute name.
func hasDuplicateAttributes(doc string) bool {
	for _, tag := range anyTagRe.FindAllString(doc, -1) {
		if tagHasDuplicateAttr(tag) {
			return true
		}
	}
	return false
}

func tagHasDuplicateAttr(tag string) bool {
	inner := strings.TrimSuffix(strings.TrimPrefix(tag, "<"), ">")
	parts := strings.SplitN(inner, " ", 2)
	if len(parts) < 2 {
		return false
	}
	seen := map[string]bool{}
	for _, m := range attrRe.FindAllStringSubmatch(parts[1], -1) {
		name := strings.ToLower(m[1])
		if seen[name] {
			return true
		}
		seen[name] = true
	}
	return false
}

// removeDuplicateAttributes rewrites tags keeping the first occurrence of
// each attribute name and dropping later repeats.
func removeDuplicateAttributes(doc string) string {
	return anyTagRe.ReplaceAllStringFunc(doc, func(tag string) string {
		if !tagHasDuplicateAttr(tag) {
			return tag
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(tag, "<"), ">")
		selfClose := strings.HasSuffix(inner, "/")
		inner = strings.TrimSuffix(inner, "/")
		parts := strings.SplitN(inner, " ", 2)
		seen := map[string]bool{}
		var kept []string
		for _, m := range attrRe.FindAllStringSubmatch(parts[1], -1) {
			name := strings.ToLower(m[1])
			if seen[name] {
				continue
			}
			seen[name] = true
			kept = append(kept, m[0])
		}
		rebuilt := "<" + parts[0]
		if len(kept) > 0 {
			rebuilt += " " + strings.Join(kept, " ")
		}
		if selfClose {
			rebuilt += "/"
		}
		return rebuilt + ">"
	})
}

// hasHeadingSkips reports whether any heading jumps more than one level
// deeper than the heading before it.
func hasHeadingSkips(doc string) bool {
	prev := 0
	for _, m := range headingTagRe.FindAllStringSubmatch(doc, -1) {
		if m[1] == "/" {
			continue
		}
		level := int(m[2][0] - '0')
		if prev > 0 && level > prev+1 {
			return true
		}
		prev = level
	}
	return false
}

// repairHeadingHierarchy rewrites headings that jump more than one level
// deeper than their predecessor down to predecessor level + 1, tracking
// the corrected level sequentially through the document. The matching
// close tag of a rewritten heading is rewritten too.
func repairHeadingHierarchy(doc string) string {
	prev := 0
	lastOpenOrig, lastOpenNew := 0, 0
	return headingTagRe.ReplaceAllStringFunc(doc, func(m string) string {
		sub := headingTagRe.FindStringSubmatch(m)
		level := int(sub[2][0] - '0')
		if sub[1] == "/" {
			if level == lastOpenOrig && lastOpenNew != lastOpenOrig {
				return fmt.Sprintf("</h%d>", lastOpenNew)
			}
			return m
		}
		newLevel := level
		if prev > 0 && level > prev+1 {
			newLevel = prev + 1
		}
		prev = newLevel
		lastOpenOrig, lastOpenNew = level, newLevel
		if newLevel == level {
			return m
		}
		return fmt.Sprintf("<h%d%s>", newLevel, sub[3])
	})
}
