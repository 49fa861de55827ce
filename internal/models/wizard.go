package models

import "time"

// WizardStep identifies one step of the production wizard.
type WizardStep string

const (
	StepNewsFetch      WizardStep = "news_fetch"
	StepNewsSelect     WizardStep = "news_select"
	StepScriptGenerate WizardStep = "script_generate"
	StepScriptReview   WizardStep = "script_review"
	StepAudioGenerate  WizardStep = "audio_generate"
	StepVideoGenerate  WizardStep = "video_generate"
	StepRenderFinal    WizardStep = "render_final"
	StepPublish        WizardStep = "publish"
	StepDone           WizardStep = "done"
)

// WizardStepOrder is the canonical step sequence. Navigation and
// auto-advance never leave this list.
var WizardStepOrder = []WizardStep{
	StepNewsFetch,
	StepNewsSelect,
	StepScriptGenerate,
	StepScriptReview,
	StepAudioGenerate,
	StepVideoGenerate,
	StepRenderFinal,
	StepPublish,
	StepDone,
}

func (s WizardStep) Valid() bool {
	for _, step := range WizardStepOrder {
		if s == step {
			return true
		}
	}
	return false
}

// StepStatus is the lifecycle status of one wizard step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// Per-step payload types. StepData holds at most one of them, tagged by
// field name, so every step's payload shape is statically known.

type NewsFetchData struct {
	TotalFetched int       `json:"total_fetched"`
	FetchedAt    time.Time `json:"fetched_at"`
}

type NewsSelectData struct {
	SelectedCount int `json:"selected_count"`
}

type ScriptGenerateData struct {
	SceneCount int `json:"scene_count"`
	Version    int `json:"version"`
}

type ScriptReviewData struct {
	ApprovedVersion int `json:"approved_version"`
}

// BatchProgressData summarizes per-segment generation work for the audio
// and video steps.
type BatchProgressData struct {
	Total   int `json:"total"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

type RenderFinalData struct {
	VideoURL  string `json:"video_url,omitempty"`
	PosterURL string `json:"poster_url,omitempty"`
}

type PublishData struct {
	YouTubeVideoID string `json:"youtube_video_id,omitempty"`
}

// StepData is a tagged union over the step payload types above.
type StepData struct {
	NewsFetch      *NewsFetchData      `json:"news_fetch,omitempty"`
	NewsSelect     *NewsSelectData     `json:"news_select,omitempty"`
	ScriptGenerate *ScriptGenerateData `json:"script_generate,omitempty"`
	ScriptReview   *ScriptReviewData   `json:"script_review,omitempty"`
	AudioGenerate  *BatchProgressData  `json:"audio_generate,omitempty"`
	VideoGenerate  *BatchProgressData  `json:"video_generate,omitempty"`
	RenderFinal    *RenderFinalData    `json:"render_final,omitempty"`
	Publish        *PublishData        `json:"publish,omitempty"`
}

// StepState is the persisted sub-state of one wizard step.
type StepState struct {
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Data        *StepData  `json:"data,omitempty"`
}

// WizardState is the progress snapshot persisted on every transition.
type WizardState struct {
	CurrentStep WizardStep                `json:"current_step"`
	Steps       map[WizardStep]*StepState `json:"steps"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// NewWizardState returns a fresh state positioned on the first step with
// every sub-state pending.
func NewWizardState() *WizardState {
	steps := make(map[WizardStep]*StepState, len(WizardStepOrder))
	for _, step := range WizardStepOrder {
		steps[step] = &StepState{Status: StepStatusPending}
	}
	return &WizardState{
		CurrentStep: StepNewsFetch,
		Steps:       steps,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Step returns the sub-state for the given step, creating it when the
// snapshot was persisted before that step existed.
func (ws *WizardState) Step(step WizardStep) *StepState {
	if ws.Steps == nil {
		ws.Steps = make(map[WizardStep]*StepState)
	}
	state, ok := ws.Steps[step]
	if !ok {
		state = &StepState{Status: StepStatusPending}
		ws.Steps[step] = state
	}
	return state
}
