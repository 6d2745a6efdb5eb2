package generator

import (
	"errors"
	"testing"

	"docquizai/internal/models"
)

func TestBatchCount(t *testing.T) {
	tests := []struct{ total, size, want int }{
		{10, 5, 2},
		{11, 5, 3},
		{1, 5, 1},
		{0, 5, 0},
		{5, 0, 0},
	}
	for _, tc := range tests {
		if got := BatchCount(tc.total, tc.size); got != tc.want {
			t.Errorf("BatchCount(%d, %d) = %d, want %d", tc.total, tc.size, got, tc.want)
		}
	}
}

func TestPlanBatch(t *testing.T) {
	tests := []struct {
		name   string
		target models.TypeAllocation
		done   models.Progress
		want   batchPlan
	}{
		{"first batch is all mcq", models.TypeAllocation{MCQ: 7, TrueFalse: 3}, models.Progress{}, batchPlan{5, 5, 0}},
		{"second batch mixes", models.TypeAllocation{MCQ: 7, TrueFalse: 3}, models.Progress{FulfilledMCQ: 5}, batchPlan{5, 2, 3}},
		{"after a skipped batch", models.TypeAllocation{MCQ: 7, TrueFalse: 3}, models.Progress{BatchesDone: 1}, batchPlan{5, 5, 0}},
		{"tf only", models.TypeAllocation{TrueFalse: 3}, models.Progress{}, batchPlan{3, 0, 3}},
		{"nothing left", models.TypeAllocation{MCQ: 2}, models.Progress{FulfilledMCQ: 2}, batchPlan{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := planBatch(5, tc.target, tc.done); got != tc.want {
				t.Fatalf("planBatch = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseBatch(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"bare array", `[{"question":"q"}]`, 1, false},
		{"fenced", "```json\n[{\"question\":\"q\"},{\"question\":\"r\"}]\n```", 2, false},
		{"fence without language", "```\n[]\n```", 0, false},
		{"prose around", "Here you go:\n[{\"question\":\"q\"}]\nEnjoy!", 1, false},
		{"object", `{"question":"q"}`, 0, true},
		{"truncated", `[{"question":"q"`, 0, true},
		{"empty", "", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseBatch(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedBatch) {
					t.Fatalf("expected ErrMalformedBatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBatch: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("got %d candidates, want %d", len(got), tc.want)
			}
		})
	}
}
