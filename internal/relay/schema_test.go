package relay

import (
	"encoding/json"
	"testing"
)

func TestExtractContent_Shapes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
		shape   Shape
	}{
		{"openai delta", `{"choices":[{"delta":{"content":"a"}}]}`, "a", ShapeChoiceDelta},
		{"openai message", `{"choices":[{"message":{"content":"b"}}]}`, "b", ShapeChoiceMessage},
		{"legacy choice text", `{"choices":[{"text":"c"}]}`, "c", ShapeChoiceText},
		{"top-level content", `{"content":"d"}`, "d", ShapeContent},
		{"anthropic delta text", `{"delta":{"text":"e"}}`, "e", ShapeDeltaText},
		{"legacy completion", `{"completion":"f"}`, "f", ShapeCompletion},
		{"no shape", `{"id":"chatcmpl-1","model":"m"}`, "", ShapeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var chunk streamChunk
			if err := json.Unmarshal([]byte(tc.payload), &chunk); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			got, shape := extractContent(&chunk)
			if got != tc.want {
				t.Errorf("Expected content %q, got %q", tc.want, got)
			}
			if shape != tc.shape {
				t.Errorf("Expected shape %v, got %v", tc.shape, shape)
			}
		})
	}
}

func TestExtractContent_PriorityOrder(t *testing.T) {
	// When several shapes carry content, the choices[0].delta wins.
	payload := `{"choices":[{"delta":{"content":"delta"},"message":{"content":"message"}}],"content":"top"}`

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	got, shape := extractContent(&chunk)
	if got != "delta" {
		t.Errorf("Expected delta content to win, got %q", got)
	}
	if shape != ShapeChoiceDelta {
		t.Errorf("Expected ShapeChoiceDelta, got %v", shape)
	}
}

func TestShapeString(t *testing.T) {
	if ShapeUnknown.String() != "unknown" {
		t.Errorf("Unexpected string for ShapeUnknown: %s", ShapeUnknown)
	}
	if ShapeChoiceDelta.String() != "choice_delta" {
		t.Errorf("Unexpected string for ShapeChoiceDelta: %s", ShapeChoiceDelta)
	}
}
