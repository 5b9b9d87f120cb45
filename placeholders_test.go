package flash

import (
	"context"
	"strings"
	"testing"

	"github.com/zombar/flash/models"
	"github.com/zombar/flash/oracle"
)

const placeholderContent = "<p>First paragraph.</p><p>Second paragraph.</p><p>Third paragraph.</p>"

func TestSuggestPlaceholdersHappyPath(t *testing.T) {
	store := newFakeStore()
	engine := New(DefaultConfig(), oracle.Static{Raw: `{"suggestions":[
		{"description":"A diagram of the flow","position":"after_paragraph_1","context":"First paragraph.","priority":"high"},
		{"description":"A photo of the result","position":"end_content","context":"Third paragraph.","priority":"medium"}
	]}`, TokensUsed: 7}, nil, store, nil)

	res, err := engine.SuggestPlaceholders(context.Background(), KindImage, models.FlashRequest{
		PostID:  "post-1",
		Content: placeholderContent,
	})
	if err != nil {
		t.Fatalf("SuggestPlaceholders returned error: %v", err)
	}

	if res.PlaceholdersCreated != 2 {
		t.Fatalf("PlaceholdersCreated = %d, want 2", res.PlaceholdersCreated)
	}
	if n := strings.Count(res.UpdatedContent, `class="flash-image-placeholder"`); n != 2 {
		t.Errorf("expected 2 placeholder blocks, got %d: %q", n, res.UpdatedContent)
	}

	// First block right after the first paragraph.
	blockPos := strings.Index(res.UpdatedContent, `class="flash-image-placeholder"`)
	secondParaPos := strings.Index(res.UpdatedContent, "<p>Second paragraph.</p>")
	if blockPos > secondParaPos {
		t.Errorf("first placeholder misplaced (block=%d second=%d)", blockPos, secondParaPos)
	}

	if res.Fragments[0].ID != "image-placeholder-1" || res.Fragments[1].ID != "image-placeholder-2" {
		t.Errorf("fragment IDs = %q, %q", res.Fragments[0].ID, res.Fragments[1].ID)
	}
	if res.Fragments[0].Kind != KindImage {
		t.Errorf("Kind = %q", res.Fragments[0].Kind)
	}
	if res.TokensUsed != 7 {
		t.Errorf("TokensUsed = %d, want 7", res.TokensUsed)
	}

	// Fragments persisted for the post.
	if saved := store.placeholders["post-1"]; len(saved) != 2 {
		t.Errorf("saved placeholders = %d, want 2", len(saved))
	}

	// Every placeholder carries a visible priority badge.
	if !strings.Contains(res.UpdatedContent, "high priority") {
		t.Errorf("priority badge missing: %q", res.UpdatedContent)
	}
}

func TestSuggestPlaceholdersPriorityOrderAndCap(t *testing.T) {
	engine := New(DefaultConfig(), oracle.Static{Raw: `{"suggestions":[
		{"description":"low one","position":"after_paragraph_1","priority":"low"},
		{"description":"high one","position":"after_paragraph_2","priority":"high"},
		{"description":"medium one","position":"end_content","priority":"medium"}
	]}`}, nil, nil, nil)

	res, err := engine.SuggestPlaceholders(context.Background(), KindImage, models.FlashRequest{
		PostID:  "post-1",
		Content: placeholderContent,
		Count:   2,
	})
	if err != nil {
		t.Fatalf("SuggestPlaceholders returned error: %v", err)
	}

	if res.PlaceholdersCreated != 2 {
		t.Fatalf("PlaceholdersCreated = %d, want 2 (count cap)", res.PlaceholdersCreated)
	}
	if res.Fragments[0].Priority != models.PriorityHigh || res.Fragments[1].Priority != models.PriorityMedium {
		t.Errorf("priority order wrong: %q then %q", res.Fragments[0].Priority, res.Fragments[1].Priority)
	}
	if strings.Contains(res.UpdatedContent, "low one") {
		t.Error("low priority suggestion should have been dropped by the cap")
	}
}

func TestSuggestPlaceholdersDefaultCounts(t *testing.T) {
	// Six suggestions, all valid; the image default caps at two.
	raw := `{"suggestions":[
		{"description":"a","position":"after_paragraph_1","priority":"medium"},
		{"description":"b","position":"after_paragraph_2","priority":"medium"},
		{"description":"c","position":"after_paragraph_3","priority":"medium"},
		{"description":"d","position":"end_content","priority":"medium"},
		{"description":"e","position":"mid_content","priority":"medium"},
		{"description":"f","position":"after_paragraph_1","priority":"medium"}
	]}`

	tests := []struct {
		kind string
		want int
	}{
		{KindImage, 2},
		{KindVideo, 3},
		{KindOpinion, 6},
		{KindProduct, 1},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			engine := New(DefaultConfig(), oracle.Static{Raw: raw}, nil, nil, nil)
			res, err := engine.SuggestPlaceholders(context.Background(), tt.kind, models.FlashRequest{
				PostID:  "post-1",
				Content: placeholderContent,
			})
			if err != nil {
				t.Fatalf("SuggestPlaceholders returned error: %v", err)
			}
			if res.PlaceholdersCreated != tt.want {
				t.Errorf("PlaceholdersCreated = %d, want %d", res.PlaceholdersCreated, tt.want)
			}
		})
	}
}

func TestSuggestPlaceholdersInvalidPositionsDropped(t *testing.T) {
	engine := New(DefaultConfig(), oracle.Static{Raw: `{"suggestions":[
		{"description":"valid","position":"after_paragraph_1","priority":"high"},
		{"description":"bad position","position":"after_paragraph_99","priority":"high"},
		{"description":"nonsense position","position":"somewhere","priority":"high"},
		{"description":"","position":"after_paragraph_2","priority":"high"}
	]}`}, nil, nil, nil)

	res, err := engine.SuggestPlaceholders(context.Background(), KindVideo, models.FlashRequest{
		PostID:  "post-1",
		Content: placeholderContent,
	})
	if err != nil {
		t.Fatalf("SuggestPlaceholders returned error: %v", err)
	}
	if res.PlaceholdersCreated != 1 {
		t.Errorf("PlaceholdersCreated = %d, want 1 (invalid suggestions dropped)", res.PlaceholdersCreated)
	}
	if !strings.Contains(res.UpdatedContent, "valid") {
		t.Errorf("surviving suggestion missing: %q", res.UpdatedContent)
	}
}

func TestSuggestPlaceholdersRerunReplaces(t *testing.T) {
	engine := New(DefaultConfig(), oracle.Static{Raw: `{"suggestions":[
		{"description":"the spot","position":"after_paragraph_1","priority":"high"}
	]}`}, nil, nil, nil)
	req := models.FlashRequest{PostID: "post-1", Content: placeholderContent}

	first, err := engine.SuggestPlaceholders(context.Background(), KindOpinion, req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	req.Content = first.UpdatedContent
	second, err := engine.SuggestPlaceholders(context.Background(), KindOpinion, req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if n := strings.Count(second.UpdatedContent, `class="flash-opinion-placeholder"`); n != 1 {
		t.Errorf("expected exactly 1 opinion placeholder after re-run, got %d", n)
	}
}

func TestSuggestPlaceholdersKindsIsolated(t *testing.T) {
	raw := `{"suggestions":[{"description":"spot","position":"after_paragraph_1","priority":"high"}]}`
	engine := New(DefaultConfig(), oracle.Static{Raw: raw}, nil, nil, nil)

	res, err := engine.SuggestPlaceholders(context.Background(), KindImage, models.FlashRequest{
		PostID:  "post-1",
		Content: placeholderContent,
	})
	if err != nil {
		t.Fatalf("image run: %v", err)
	}

	res, err = engine.SuggestPlaceholders(context.Background(), KindVideo, models.FlashRequest{
		PostID:  "post-1",
		Content: res.UpdatedContent,
	})
	if err != nil {
		t.Fatalf("video run: %v", err)
	}

	if n := strings.Count(res.UpdatedContent, `class="flash-image-placeholder"`); n != 1 {
		t.Errorf("image placeholder lost on video run, count %d", n)
	}
	if n := strings.Count(res.UpdatedContent, `class="flash-video-placeholder"`); n != 1 {
		t.Errorf("video placeholder count %d", n)
	}
}

func TestSuggestPlaceholdersDegradedPaths(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		engine := New(DefaultConfig(), oracle.Static{Raw: "{}"}, nil, nil, nil)
		if _, err := engine.SuggestPlaceholders(context.Background(), "banner", models.FlashRequest{PostID: "p", Content: placeholderContent}); err == nil {
			t.Error("expected error for unknown kind")
		}
	})

	t.Run("oracle failure", func(t *testing.T) {
		engine := New(DefaultConfig(), nil, nil, nil, nil)
		res, err := engine.SuggestPlaceholders(context.Background(), KindImage, models.FlashRequest{PostID: "p", Content: placeholderContent})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.UpdatedContent != placeholderContent || res.Message != "suggestions unavailable" {
			t.Errorf("expected unchanged content, got %+v", res)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		engine := New(DefaultConfig(), oracle.Static{Raw: "{}"}, nil, nil, nil)
		res, err := engine.SuggestPlaceholders(context.Background(), KindImage, models.FlashRequest{PostID: "p", Content: ""})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Message != "no content to analyze" {
			t.Errorf("Message = %q", res.Message)
		}
	})

	t.Run("malformed oracle output", func(t *testing.T) {
		engine := New(DefaultConfig(), oracle.Static{Raw: "nope"}, nil, nil, nil)
		res, err := engine.SuggestPlaceholders(context.Background(), KindImage, models.FlashRequest{PostID: "p", Content: placeholderContent})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.UpdatedContent != placeholderContent || res.Message != "no usable suggestions" {
			t.Errorf("expected unchanged content, got %+v", res)
		}
	})
}
