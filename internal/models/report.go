package models

// OutcomeStatus tags the result of one unit of pipeline work.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

type MediaKind string

const (
	MediaImage        MediaKind = "image"
	MediaVideo        MediaKind = "video"
	MediaVideoSegment MediaKind = "video_segment"
)

// MediaOutcome records how one embedded image or video reference was resolved.
type MediaOutcome struct {
	Kind      MediaKind     `json:"kind"`
	Ref       string        `json:"ref"`
	Status    OutcomeStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	ElapsedMs int64         `json:"elapsedMs"`
}

type DocumentOutcome struct {
	Position int            `json:"position"`
	Filename string         `json:"filename"`
	Status   OutcomeStatus  `json:"status"`
	Reason   string         `json:"reason,omitempty"`
	Media    []MediaOutcome `json:"media,omitempty"`
}

type BatchOutcome struct {
	Index        int           `json:"index"`
	Requested    int           `json:"requested"`
	RequestedMCQ int           `json:"requestedMcq"`
	RequestedTF  int           `json:"requestedTrueFalse"`
	Accepted     int           `json:"accepted"`
	Rejected     int           `json:"rejected"`
	Status       OutcomeStatus `json:"status"`
	Reason       string        `json:"reason,omitempty"`
}

// JobReport aggregates every document and batch outcome of one pipeline run.
type JobReport struct {
	Documents    []DocumentOutcome `json:"documents"`
	Batches      []BatchOutcome    `json:"batches"`
	FulfilledMCQ int               `json:"fulfilledMcq"`
	FulfilledTF  int               `json:"fulfilledTrueFalse"`
}

// Count returns how many entries of the report carry the given status.
func (r JobReport) Count(status OutcomeStatus) (documents, batches int) {
	for _, d := range r.Documents {
		if d.Status == status {
			documents++
		}
	}
	for _, b := range r.Batches {
		if b.Status == status {
			batches++
		}
	}
	return documents, batches
}
