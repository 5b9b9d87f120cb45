package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIValidation(t *testing.T) {
	if _, err := NewOpenAI(Config{Model: "gpt-4o-mini"}); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewOpenAI(Config{APIKey: "test-key"}); err == nil {
		t.Error("expected error for missing model")
	}
	if _, err := NewOpenAI(Config{APIKey: "test-key", Model: "gpt-4o-mini"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenAISuggest(t *testing.T) {
	var gotModel string
	var gotMessages int

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = body.Model
		gotMessages = len(body.Messages)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "  {\"faqs\":[]}  "}}],
			"usage": {"total_tokens": 42}
		}`))
	}))
	defer ts.Close()

	client, err := NewOpenAI(Config{
		APIKey:  "test-key",
		BaseURL: ts.URL,
		Model:   "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	resp, err := client.Suggest(context.Background(), "generate faqs")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	if resp.Raw != `{"faqs":[]}` {
		t.Errorf("Raw = %q, want trimmed JSON", resp.Raw)
	}
	if resp.TokensUsed != 42 {
		t.Errorf("TokensUsed = %d, want 42", resp.TokensUsed)
	}
	if gotModel != "gpt-4o-mini" {
		t.Errorf("model = %q", gotModel)
	}
	if gotMessages != 2 {
		t.Errorf("messages = %d, want system + user", gotMessages)
	}
}

func TestOpenAISuggestEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [], "usage": {"total_tokens": 0}}`))
	}))
	defer ts.Close()

	client, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: ts.URL, Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	if _, err := client.Suggest(context.Background(), "anything"); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestStatic(t *testing.T) {
	s := Static{Raw: "answer", TokensUsed: 7}
	resp, err := s.Suggest(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if resp.Raw != "answer" || resp.TokensUsed != 7 {
		t.Errorf("resp = %+v", resp)
	}

	want := errors.New("down")
	if _, err := (Static{Err: want}).Suggest(context.Background(), "prompt"); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestFunc(t *testing.T) {
	var gotPrompt string
	f := Func(func(ctx context.Context, prompt string) (Response, error) {
		gotPrompt = prompt
		return Response{Raw: "ok"}, nil
	})

	resp, err := f.Suggest(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if resp.Raw != "ok" || gotPrompt != "hello" {
		t.Errorf("resp = %+v, prompt = %q", resp, gotPrompt)
	}
}
