package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPriorityRank(t *testing.T) {
	tests := []struct {
		priority Priority
		want     int
	}{
		{PriorityHigh, 0},
		{PriorityMedium, 1},
		{PriorityLow, 2},
		{Priority("urgent"), 3},
		{Priority(""), 3},
	}

	for _, tt := range tests {
		if got := tt.priority.Rank(); got != tt.want {
			t.Errorf("Rank(%q) = %d, want %d", tt.priority, got, tt.want)
		}
	}

	if PriorityHigh.Rank() >= PriorityMedium.Rank() || PriorityMedium.Rank() >= PriorityLow.Rank() {
		t.Error("priority ordering broken")
	}
}

func TestFlashRequestUnmarshal(t *testing.T) {
	body := `{
		"postId": "post-1",
		"content": "<p>hello</p>",
		"userName": "acme",
		"userStyles": {"accentColor": "#ff0000"},
		"count": 4
	}`

	var req FlashRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if req.PostID != "post-1" || req.Content != "<p>hello</p>" || req.UserName != "acme" {
		t.Errorf("req = %+v", req)
	}
	if req.Count != 4 {
		t.Errorf("Count = %d, want 4", req.Count)
	}
	if req.UserStyles == nil || req.UserStyles.AccentColor != "#ff0000" {
		t.Errorf("UserStyles = %+v", req.UserStyles)
	}
}

func TestExecutionLogRecordMarshal(t *testing.T) {
	rec := ExecutionLogRecord{
		ID:              "abc",
		PostID:          "post-1",
		FeatureType:     "faq",
		Success:         true,
		ExecutionTimeMs: 120,
		TokensUsed:      42,
		CreatedAt:       time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	for _, key := range []string{
		`"post_id"`, `"feature_type"`, `"execution_time_ms"`, `"tokens_used"`, `"created_at"`,
	} {
		if !strings.Contains(string(data), key) {
			t.Errorf("marshaled record missing %s: %s", key, data)
		}
	}
	if strings.Contains(string(data), "error_message") {
		t.Errorf("empty error_message should be omitted: %s", data)
	}
}

func TestStyleTokensOmitEmpty(t *testing.T) {
	data, err := json.Marshal(StyleTokens{AccentColor: "#00ff00"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"accentColor":"#00ff00"}` {
		t.Errorf("marshaled = %s", data)
	}
}
