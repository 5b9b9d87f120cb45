package flash

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Position descriptors understood by the structural locator.
const (
	descAfterParagraph = "after_paragraph_" // after_paragraph_N (1-based)
	descBeforeSection  = "before_section_"  // before_section_N (1-based <h2> count)
	descMidContent     = "mid_content"
	descEndContent     = "end_content"
)

// paragraph is one <p>…</p> span in the raw document.
type paragraph struct {
	start int // offset of the opening <p>
	end   int // offset immediately after the closing </p>
	text  string
}

// docIndex is a positional index over a raw HTML string. It is built with a
// tolerant tokenizer rather than regex scans, so tag-name matching is
// case-insensitive and every recorded offset sits on a token boundary —
// an insertion at any offset the index hands out can never split a tag.
type docIndex struct {
	length     int
	paragraphs []paragraph
	headings   []int // start offsets of <h2> opening tags
	boundaries []int // offsets between consecutive tokens, ascending
}

// indexDocument tokenizes doc and records paragraph spans, section heading
// starts, and all inter-token boundaries.
func indexDocument(doc string) *docIndex {
	idx := &docIndex{length: len(doc)}
	z := html.NewTokenizer(strings.NewReader(doc))

	offset := 0
	openParagraph := -1
	var text strings.Builder

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		tokStart := offset
		offset += len(raw)
		idx.boundaries = append(idx.boundaries, tokStart)

		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "p":
				if openParagraph < 0 {
					openParagraph = tokStart
					text.Reset()
				}
			case "h2":
				idx.headings = append(idx.headings, tokStart)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "p" && openParagraph >= 0 {
				idx.paragraphs = append(idx.paragraphs, paragraph{
					start: openParagraph,
					end:   offset,
					text:  text.String(),
				})
				openParagraph = -1
			}
		case html.TextToken:
			if openParagraph >= 0 {
				text.Write(z.Text())
			}
		}
	}

	idx.boundaries = append(idx.boundaries, idx.length)
	return idx
}

// resolve maps a position descriptor to a byte offset in the document.
// The second return is false when the descriptor cannot be satisfied;
// callers fall back to appending at the end of the document.
func (idx *docIndex) resolve(descriptor string) (int, bool) {
	switch {
	case strings.HasPrefix(descriptor, descAfterParagraph):
		n, err := strconv.Atoi(strings.TrimPrefix(descriptor, descAfterParagraph))
		if err != nil || n < 1 || n > len(idx.paragraphs) {
			return 0, false
		}
		return idx.paragraphs[n-1].end, true

	case strings.HasPrefix(descriptor, descBeforeSection):
		n, err := strconv.Atoi(strings.TrimPrefix(descriptor, descBeforeSection))
		if err != nil || n < 1 || n > len(idx.headings) {
			return 0, false
		}
		return idx.headings[n-1], true

	case descriptor == descMidContent:
		return idx.snap(idx.length / 2), true

	case descriptor == descEndContent:
		if len(idx.paragraphs) == 0 {
			return 0, false
		}
		return idx.paragraphs[len(idx.paragraphs)-1].end, true
	}

	return 0, false
}

// snap returns the first token boundary at or after target, so a raw
// character offset (like the document midpoint) lands between tokens
// instead of inside one.
func (idx *docIndex) snap(target int) int {
	i := sort.SearchInts(idx.boundaries, target)
	if i < len(idx.boundaries) {
		return idx.boundaries[i]
	}
	return idx.length
}

// ResolvePosition resolves a single descriptor against a document. For
// repeated queries over the same document build a docIndex once instead.
func ResolvePosition(doc, descriptor string) (int, bool) {
	return indexDocument(doc).resolve(descriptor)
}

// conclusionKeywords mark the paragraph an FAQ block should precede.
var conclusionKeywords = []string{
	"conclusion", "summary", "final thoughts", "in summary", "to conclude",
	"wrapping up", "in closing", "bottom line", "key takeaways",
}

// faqInsertionOffset picks where an FAQ block goes: the start of the first
// paragraph mentioning a conclusion keyword, else the start of the
// second-to-last paragraph when three or more exist, else the start of the
// last paragraph. Returns false for paragraph-free documents.
func (idx *docIndex) faqInsertionOffset() (int, bool) {
	for _, p := range idx.paragraphs {
		lower := strings.ToLower(p.text)
		for _, kw := range conclusionKeywords {
			if strings.Contains(lower, kw) {
				return p.start, true
			}
		}
	}

	switch n := len(idx.paragraphs); {
	case n >= 3:
		return idx.paragraphs[n-2].start, true
	case n >= 1:
		return idx.paragraphs[n-1].start, true
	}
	return 0, false
}
