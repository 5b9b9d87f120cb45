package flash

import (
	"reflect"
	"testing"
)

func TestStripTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain paragraphs",
			input:    "<p>Hello</p><p>World</p>",
			expected: "Hello World",
		},
		{
			name:     "nested markup",
			input:    "<div><p>Some <strong>bold</strong> text</p></div>",
			expected: "Some bold text",
		},
		{
			name:     "collapses whitespace",
			input:    "<p>a</p>\n\n\n<p>b</p>",
			expected: "a b",
		},
		{
			name:     "empty document",
			input:    "",
			expected: "",
		},
		{
			name:     "markup only",
			input:    "<div><br/></div>",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTags(tt.input); got != tt.expected {
				t.Errorf("StripTags(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "ranked by frequency",
			input:    "<p>Kubernetes cluster scaling. Kubernetes nodes. Kubernetes scaling tips.</p>",
			expected: []string{"kubernetes", "scaling", "cluster", "nodes"},
		},
		{
			name:     "short tokens dropped",
			input:    "<p>Go is a fine tool for web work</p>",
			expected: []string{},
		},
		{
			name:     "common words dropped",
			input:    "<p>something about everything should remain hidden gardens gardens</p>",
			expected: []string{"gardens", "remain", "hidden"},
		},
		{
			name:     "empty document",
			input:    "",
			expected: []string{},
		},
		{
			name:     "ties keep first seen order",
			input:    "<p>alpine hiking routes</p>",
			expected: []string{"alpine", "hiking", "routes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTopics(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ExtractTopics(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractTopicsCap(t *testing.T) {
	input := "<p>antelope buffalo caribou dolphin elephant flamingo giraffe</p>"
	got := ExtractTopics(input)
	if len(got) != maxTopics {
		t.Errorf("expected %d topics, got %d: %v", maxTopics, len(got), got)
	}
}

func TestExtractTopicsDeterministic(t *testing.T) {
	input := "<p>Roasting coffee requires patience. Roasting profiles differ between beans.</p>"
	first := ExtractTopics(input)
	for i := 0; i < 5; i++ {
		if got := ExtractTopics(input); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestOverlapRatio(t *testing.T) {
	target := wordSet("Kubernetes Deployment Strategies")

	tests := []struct {
		name     string
		phrase   string
		expected float64
	}{
		{"full overlap", "kubernetes deployment strategies", 1.0},
		{"half overlap", "deployment guide", 0.5},
		{"no overlap", "coffee roasting", 0.0},
		{"empty phrase", "", 0.0},
		{"punctuation trimmed", "deployment, strategies!", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overlapRatio(tt.phrase, target); got != tt.expected {
				t.Errorf("overlapRatio(%q) = %v, want %v", tt.phrase, got, tt.expected)
			}
		})
	}
}
