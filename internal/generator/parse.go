package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedBatch means the model response is not a JSON array.
var ErrMalformedBatch = errors.New("malformed batch response")

// candidate is one question as the model wrote it, before validation.
type candidate struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	QuestionType  string   `json:"questionType"`
}

// parseBatch decodes the model response as a JSON array, tolerating a fenced code block
// around it. Elements that do not decode are returned as zero candidates, which fail
// validation later.
func parseBatch(text string) ([]candidate, error) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON array found", ErrMalformedBatch)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	out := make([]candidate, len(elems))
	for i, elem := range elems {
		var c candidate
		if err := json.Unmarshal(elem, &c); err != nil {
			continue
		}
		out[i] = c
	}
	return out, nil
}

// extractJSON pulls the JSON array out of a response that may be wrapped in a
// ```json fence or surrounded by prose.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```"); start >= 0 {
		body := text[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(body[:nl]), "[") {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		text = strings.TrimSpace(body)
	}

	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		return text
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
