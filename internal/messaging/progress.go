package messaging

import (
	"time"

	"newsroom-server/internal/models"
)

// Progress update kinds.
const (
	ProgressKindStep    = "step"
	ProgressKindSegment = "segment"
)

// ProgressUpdate is one client-visible progress event. Segment events are
// published after every single unit completes, not just at batch end, so
// the UI progress is visibly incremental.
type ProgressUpdate struct {
	ProductionID string            `json:"production_id"`
	Kind         string            `json:"kind"`
	Step         models.WizardStep `json:"step"`
	StepStatus   models.StepStatus `json:"step_status,omitempty"`
	SegmentIndex *int              `json:"segment_index,omitempty"`
	Media        string            `json:"media,omitempty"` // audio or video
	UnitStatus   models.UnitStatus `json:"unit_status,omitempty"`
	URL          string            `json:"url,omitempty"`
	Error        string            `json:"error,omitempty"`
	Done         int               `json:"done"`
	Failed       int               `json:"failed"`
	Total        int               `json:"total"`
	Message      string            `json:"message,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}
