package flash

import (
	"regexp"
	"strings"
)

// Marker classes identifying generated fragments for deduplication.
const (
	MarkerFAQ          = "flash-faq"
	MarkerCitations    = "flash-citations"
	MarkerInternalLink = "flash-internal-link"
)

// MarkerForKind returns the marker class for a placeholder kind.
func MarkerForKind(kind string) string {
	return "flash-" + kind + "-placeholder"
}

// InsertAt splices a fragment into the document at offset, padded with a
// blank line on both sides. When ok is false (position not resolvable) the
// fragment is appended at the end instead; insertion never fails.
func InsertAt(doc string, offset int, ok bool, fragment string) string {
	if !ok || offset < 0 || offset > len(doc) {
		return doc + "\n\n" + fragment
	}
	return doc[:offset] + "\n\n" + fragment + "\n\n" + doc[offset:]
}

var flashBlockOpenRe = regexp.MustCompile(`<div class="(flash-[a-z-]+)"`)

// flashBlock is one generated <div class="flash-…"> block located in a
// document, including its full balanced extent.
type flashBlock struct {
	start, end int
	marker     string
}

// findFlashBlocks locates every flash-marked div in the document, scanning
// forward from each opening tag and counting div nesting so blocks with
// inner divs are captured whole. Blocks whose closing tag is missing are
// skipped rather than guessed at.
func findFlashBlocks(doc string) []flashBlock {
	var blocks []flashBlock
	lower := strings.ToLower(doc)
	for _, loc := range flashBlockOpenRe.FindAllStringSubmatchIndex(doc, -1) {
		start := loc[0]
		marker := doc[loc[2]:loc[3]]
		depth := 0
		pos := start
		for pos < len(doc) {
			nextOpen := strings.Index(lower[pos:], "<div")
			nextClose := strings.Index(lower[pos:], "</div>")
			if nextClose < 0 {
				pos = -1
				break
			}
			if nextOpen >= 0 && nextOpen < nextClose {
				depth++
				pos += nextOpen + len("<div")
				continue
			}
			depth--
			pos += nextClose + len("</div>")
			if depth == 0 {
				break
			}
		}
		if pos < 0 || depth != 0 {
			continue
		}
		blocks = append(blocks, flashBlock{start: start, end: pos, marker: marker})
	}
	return blocks
}

// StripFragments removes every fragment bearing the given marker class,
// along with the blank-line padding InsertAt added around it. Running a
// generator on an already-augmented document therefore replaces its old
// output instead of accumulating copies.
func StripFragments(doc, marker string) string {
	blocks := findFlashBlocks(doc)
	if len(blocks) == 0 {
		return doc
	}
	var b strings.Builder
	prev := 0
	for _, blk := range blocks {
		if blk.marker != marker || blk.start < prev {
			continue
		}
		b.WriteString(strings.TrimRight(doc[prev:blk.start], " \t\n"))
		prev = blk.end
		// Swallow one padding blank line after the block.
		rest := doc[prev:]
		trimmed := strings.TrimLeft(rest, " \t")
		if strings.HasPrefix(trimmed, "\n\n") {
			prev = len(doc) - len(trimmed) + 2
		} else if strings.HasPrefix(trimmed, "\n") {
			prev = len(doc) - len(trimmed) + 1
		}
	}
	b.WriteString(doc[prev:])
	return b.String()
}

// dedupFlashBlocks removes flash blocks that are byte-identical to the
// immediately preceding block of the same marker (separated only by
// whitespace), and drops flash blocks with no content. Used as the final
// clean-html pass.
func dedupFlashBlocks(doc string) string {
	// A generated div can sit inside an earlier block when a later run's
	// position resolved inside it; only top-level blocks take part here.
	var blocks []flashBlock
	prevEnd := 0
	for _, blk := range findFlashBlocks(doc) {
		if blk.start < prevEnd {
			continue
		}
		blocks = append(blocks, blk)
		prevEnd = blk.end
	}
	if len(blocks) == 0 {
		return doc
	}

	type cut struct{ start, end int }
	var cuts []cut
	for i, blk := range blocks {
		body := doc[blk.start:blk.end]
		if emptyFlashBlock(body) {
			cuts = append(cuts, cut{blk.start, blk.end})
			continue
		}
		if i == 0 {
			continue
		}
		prevBlk := blocks[i-1]
		between := doc[prevBlk.end:blk.start]
		if strings.TrimSpace(between) == "" && body == doc[prevBlk.start:prevBlk.end] {
			cuts = append(cuts, cut{blk.start, blk.end})
		}
	}
	if len(cuts) == 0 {
		return doc
	}

	var b strings.Builder
	prev := 0
	for _, c := range cuts {
		if c.start < prev {
			continue
		}
		b.WriteString(strings.TrimRight(doc[prev:c.start], " \t\n"))
		prev = c.end
	}
	b.WriteString(doc[prev:])
	return b.String()
}

// emptyFlashBlock reports whether a flash block renders no text at all.
func emptyFlashBlock(block string) bool {
	return StripTags(block) == ""
}

var internalLinkRe = regexp.MustCompile(`<a class="flash-internal-link"[^>]*>(.*?)</a>`)

// StripInternalLinks unwraps previously inserted internal-link anchors,
// restoring their inner text so a re-run can link afresh.
func StripInternalLinks(doc string) string {
	return internalLinkRe.ReplaceAllString(doc, "$1")
}
