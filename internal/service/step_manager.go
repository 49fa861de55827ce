package service

import (
	"time"

	"newsroom-server/internal/models"

	"go.uber.org/zap"
)

// nextStepTable is the total order over the canonical steps. done has no
// successor.
var nextStepTable = map[models.WizardStep]models.WizardStep{
	models.StepNewsFetch:      models.StepNewsSelect,
	models.StepNewsSelect:     models.StepScriptGenerate,
	models.StepScriptGenerate: models.StepScriptReview,
	models.StepScriptReview:   models.StepAudioGenerate,
	models.StepAudioGenerate:  models.StepVideoGenerate,
	models.StepVideoGenerate:  models.StepRenderFinal,
	models.StepRenderFinal:    models.StepPublish,
	models.StepPublish:        models.StepDone,
}

// ReadinessPredicate reports whether a step may be entered for the given
// production. A nil return means ready; otherwise the error names what is
// missing.
type ReadinessPredicate func(p *models.Production) error

// readinessTable holds one predicate per step, separate from the
// transition order so navigation checks never hide inside handler code.
var readinessTable = map[models.WizardStep]ReadinessPredicate{
	models.StepNewsFetch: func(_ *models.Production) error { return nil },
	models.StepNewsSelect: func(p *models.Production) error {
		if len(p.FetchedNews) == 0 {
			return &models.DependencyNotReadyError{Step: models.StepNewsSelect, Reason: "no news fetched yet"}
		}
		return nil
	},
	models.StepScriptGenerate: func(p *models.Production) error {
		if len(p.SelectedNewsIDs) == 0 {
			return &models.DependencyNotReadyError{Step: models.StepScriptGenerate, Reason: "no news items selected"}
		}
		return nil
	},
	models.StepScriptReview: func(p *models.Production) error {
		if len(p.Script) == 0 {
			return &models.DependencyNotReadyError{Step: models.StepScriptReview, Reason: "no script generated yet"}
		}
		return nil
	},
	models.StepAudioGenerate: func(p *models.Production) error {
		if len(p.Segments) == 0 {
			return &models.DependencyNotReadyError{Step: models.StepAudioGenerate, Reason: "no segments exist"}
		}
		return nil
	},
	models.StepVideoGenerate: func(p *models.Production) error {
		if p.SegmentStatus.AudioDone() == 0 {
			return &models.DependencyNotReadyError{Step: models.StepVideoGenerate, Reason: "no segment has finished audio"}
		}
		return nil
	},
	models.StepRenderFinal: func(p *models.Production) error {
		if p.SegmentStatus.VideoDone() == 0 {
			return &models.DependencyNotReadyError{Step: models.StepRenderFinal, Reason: "no segment has finished video"}
		}
		return nil
	},
	models.StepPublish: func(p *models.Production) error {
		if p.FinalVideoURL == "" {
			return &models.DependencyNotReadyError{Step: models.StepPublish, Reason: "final video has not been rendered"}
		}
		return nil
	},
	models.StepDone: func(p *models.Production) error {
		if p.YouTubeVideoID == "" {
			return &models.DependencyNotReadyError{Step: models.StepDone, Reason: "production has not been published"}
		}
		return nil
	},
}

// WizardStepManager owns the step transition and readiness tables.
type WizardStepManager struct {
	logger *zap.Logger
}

// NewWizardStepManager creates the step manager.
func NewWizardStepManager(logger *zap.Logger) *WizardStepManager {
	return &WizardStepManager{logger: logger.Named("WizardStepManager")}
}

// NextStep returns the successor of step. ok is false for done.
func (m *WizardStepManager) NextStep(step models.WizardStep) (models.WizardStep, bool) {
	next, ok := nextStepTable[step]
	return next, ok
}

// CanEnter reports whether step may become currentStep for p. A step
// already marked completed is always navigable for review or
// regeneration; otherwise the readiness predicate decides.
func (m *WizardStepManager) CanEnter(p *models.Production, step models.WizardStep) error {
	if !step.Valid() {
		return &models.ValidationError{Field: "step", Reason: "unknown wizard step"}
	}
	if p.WizardState != nil {
		if state := p.WizardState.Step(step); state.Status == models.StepStatusCompleted {
			return nil
		}
	}
	predicate, ok := readinessTable[step]
	if !ok {
		return &models.ValidationError{Field: "step", Reason: "unknown wizard step"}
	}
	return predicate(p)
}

// CompleteAndAdvance marks step completed with a timestamp, moves
// currentStep to its successor and seeds the successor's sub-state with
// a pending status plus the given payload summary.
func (m *WizardStepManager) CompleteAndAdvance(p *models.Production, step models.WizardStep, data *models.StepData, nextData *models.StepData) {
	now := time.Now().UTC()
	state := p.WizardState.Step(step)
	state.Status = models.StepStatusCompleted
	state.CompletedAt = &now
	state.Error = ""
	if data != nil {
		state.Data = data
	}

	next, ok := m.NextStep(step)
	if !ok {
		p.WizardState.CurrentStep = step
		p.WizardState.UpdatedAt = now
		return
	}

	nextState := p.WizardState.Step(next)
	if nextState.Status != models.StepStatusCompleted {
		nextState.Status = models.StepStatusPending
		if nextData != nil {
			nextState.Data = nextData
		}
	}
	p.WizardState.CurrentStep = next
	p.WizardState.UpdatedAt = now

	m.logger.Debug("Step completed, advanced",
		zap.String("productionID", p.ID.String()),
		zap.String("completed", string(step)),
		zap.String("currentStep", string(next)))
}

// MarkInProgress stamps a step as started.
func (m *WizardStepManager) MarkInProgress(p *models.Production, step models.WizardStep) {
	now := time.Now().UTC()
	state := p.WizardState.Step(step)
	state.Status = models.StepStatusInProgress
	if state.StartedAt == nil {
		state.StartedAt = &now
	}
	state.Error = ""
	p.WizardState.UpdatedAt = now
}

// MarkFailed records a step failure with its message. currentStep stays
// unchanged so the user can retry.
func (m *WizardStepManager) MarkFailed(p *models.Production, step models.WizardStep, err error) {
	now := time.Now().UTC()
	state := p.WizardState.Step(step)
	state.Status = models.StepStatusFailed
	if err != nil {
		state.Error = err.Error()
	}
	p.WizardState.UpdatedAt = now
}
