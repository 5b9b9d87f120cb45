package flash

import (
	"strings"
	"testing"
)

func TestInsertAt(t *testing.T) {
	doc := "<p>alpha</p><p>beta</p>"
	frag := `<div class="flash-faq">faq</div>`

	t.Run("inserts with blank line padding", func(t *testing.T) {
		got := InsertAt(doc, 12, true, frag)
		want := "<p>alpha</p>\n\n" + frag + "\n\n<p>beta</p>"
		if got != want {
			t.Errorf("InsertAt = %q, want %q", got, want)
		}
	})

	t.Run("appends when position unresolved", func(t *testing.T) {
		got := InsertAt(doc, 0, false, frag)
		want := doc + "\n\n" + frag
		if got != want {
			t.Errorf("InsertAt = %q, want %q", got, want)
		}
	})

	t.Run("appends on out of range offset", func(t *testing.T) {
		got := InsertAt(doc, len(doc)+5, true, frag)
		want := doc + "\n\n" + frag
		if got != want {
			t.Errorf("InsertAt = %q, want %q", got, want)
		}
	})
}

func TestStripFragmentsRoundTrip(t *testing.T) {
	doc := "<p>alpha</p><p>beta</p>"
	frag := `<div class="flash-faq" style="color: red;"><h2>FAQ</h2></div>`

	inserted := InsertAt(doc, 12, true, frag)
	if got := StripFragments(inserted, MarkerFAQ); got != doc {
		t.Errorf("strip after insert = %q, want original %q", got, doc)
	}

	appended := InsertAt(doc, 0, false, frag)
	if got := StripFragments(appended, MarkerFAQ); got != doc {
		t.Errorf("strip after append = %q, want original %q", got, doc)
	}
}

func TestStripFragmentsNestedDivs(t *testing.T) {
	doc := `<p>intro</p>` + "\n\n" +
		`<div class="flash-citations"><div class="inner"><p>source</p></div></div>` + "\n\n" +
		`<p>outro</p>`

	got := StripFragments(doc, MarkerCitations)
	if strings.Contains(got, "flash-citations") {
		t.Errorf("nested block not removed: %q", got)
	}
	if !strings.Contains(got, "<p>intro</p>") || !strings.Contains(got, "<p>outro</p>") {
		t.Errorf("surrounding content damaged: %q", got)
	}
}

func TestStripFragmentsLeavesOtherMarkers(t *testing.T) {
	doc := `<p>text</p>` + "\n\n" +
		`<div class="flash-faq">faq</div>` + "\n\n" +
		`<div class="flash-citations">sources</div>`

	got := StripFragments(doc, MarkerFAQ)
	if strings.Contains(got, "flash-faq") {
		t.Errorf("target marker survived: %q", got)
	}
	if !strings.Contains(got, "flash-citations") {
		t.Errorf("unrelated marker removed: %q", got)
	}
}

func TestStripFragmentsUnclosedBlockSkipped(t *testing.T) {
	doc := `<p>text</p><div class="flash-faq">never closed`
	if got := StripFragments(doc, MarkerFAQ); got != doc {
		t.Errorf("unclosed block was altered: %q", got)
	}
}

func TestDedupFlashBlocks(t *testing.T) {
	block := `<div class="flash-faq"><p>same</p></div>`

	t.Run("adjacent identical blocks collapse", func(t *testing.T) {
		doc := "<p>a</p>\n\n" + block + "\n\n" + block + "\n\n<p>b</p>"
		got := dedupFlashBlocks(doc)
		if n := strings.Count(got, `class="flash-faq"`); n != 1 {
			t.Errorf("expected 1 block after dedup, got %d: %q", n, got)
		}
	})

	t.Run("distinct blocks kept", func(t *testing.T) {
		other := `<div class="flash-faq"><p>different</p></div>`
		doc := block + "\n\n" + other
		got := dedupFlashBlocks(doc)
		if n := strings.Count(got, `class="flash-faq"`); n != 2 {
			t.Errorf("expected 2 distinct blocks, got %d: %q", n, got)
		}
	})

	t.Run("separated identical blocks kept", func(t *testing.T) {
		doc := block + "\n\n<p>between</p>\n\n" + block
		got := dedupFlashBlocks(doc)
		if n := strings.Count(got, `class="flash-faq"`); n != 2 {
			t.Errorf("expected 2 separated blocks, got %d: %q", n, got)
		}
	})

	t.Run("empty blocks removed", func(t *testing.T) {
		doc := `<p>a</p>` + "\n\n" + `<div class="flash-image-placeholder"></div>`
		got := dedupFlashBlocks(doc)
		if strings.Contains(got, "flash-image-placeholder") {
			t.Errorf("empty block survived: %q", got)
		}
	})

	t.Run("block nested inside another left intact", func(t *testing.T) {
		doc := `<p>intro</p><div class="flash-faq"><p>q</p>` +
			`<div class="flash-image-placeholder"><p>img</p></div></div><p>outro</p>`
		if got := dedupFlashBlocks(doc); got != doc {
			t.Errorf("nested block altered document:\n got: %q\nwant: %q", got, doc)
		}
	})

	t.Run("duplicate blocks with nested children collapse", func(t *testing.T) {
		outer := `<div class="flash-faq"><p>q</p><div class="flash-image-placeholder"><p>img</p></div></div>`
		doc := outer + "\n\n" + outer
		got := dedupFlashBlocks(doc)
		if n := strings.Count(got, `class="flash-faq"`); n != 1 {
			t.Errorf("expected 1 outer block, got %d: %q", n, got)
		}
		if n := strings.Count(got, `class="flash-image-placeholder"`); n != 1 {
			t.Errorf("expected 1 nested block, got %d: %q", n, got)
		}
	})
}

func TestStripInternalLinks(t *testing.T) {
	doc := `<p>Read our <a class="flash-internal-link" href="/other-post" title="guide" style="color: #007bff;">deployment guide</a> today.</p>`
	want := `<p>Read our deployment guide today.</p>`
	if got := StripInternalLinks(doc); got != want {
		t.Errorf("StripInternalLinks = %q, want %q", got, want)
	}

	plain := `<p>No links here, <a href="/x">normal link</a> stays.</p>`
	if got := StripInternalLinks(plain); got != plain {
		t.Errorf("unrelated anchor altered: %q", got)
	}
}

func TestMarkerForKind(t *testing.T) {
	if got := MarkerForKind("image"); got != "flash-image-placeholder" {
		t.Errorf("MarkerForKind(image) = %q", got)
	}
}
