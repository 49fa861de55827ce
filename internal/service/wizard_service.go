package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"newsroom-server/internal/interfaces"
	"newsroom-server/internal/messaging"
	"newsroom-server/internal/models"
	"newsroom-server/pkg/taskmanager"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WizardService orchestrates the production wizard: step transitions,
// generation batches and the synchronous snapshot persisted after every
// transition. All mutations of one production are serialized through a
// per-production mutex; batch workers only touch segment columns, which
// the snapshot writer never overlaps.
type WizardService struct {
	repo     interfaces.ProductionRepository
	db       interfaces.DBTX
	steps    *WizardStepManager
	news     *NewsService
	scripts  *ScriptService
	segments *SegmentGenerator
	renderer FinalRenderer
	youtube  VideoPublisher
	progress messaging.ProgressPublisher
	tasks    *taskmanager.Manager
	logger   *zap.Logger

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// NewWizardService wires the orchestrator.
func NewWizardService(
	repo interfaces.ProductionRepository,
	db interfaces.DBTX,
	steps *WizardStepManager,
	news *NewsService,
	scripts *ScriptService,
	segments *SegmentGenerator,
	renderer FinalRenderer,
	youtube VideoPublisher,
	progress messaging.ProgressPublisher,
	tasks *taskmanager.Manager,
	logger *zap.Logger,
) *WizardService {
	return &WizardService{
		repo:     repo,
		db:       db,
		steps:    steps,
		news:     news,
		scripts:  scripts,
		segments: segments,
		renderer: renderer,
		youtube:  youtube,
		progress: progress,
		tasks:    tasks,
		logger:   logger.Named("WizardService"),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *WizardService) lockFor(id uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// CreateProduction starts a new wizard session positioned on news_fetch.
func (s *WizardService) CreateProduction(ctx context.Context, channelID string, newsDate time.Time) (*models.Production, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, &models.ValidationError{Field: "channel_id", Reason: "must not be empty"}
	}
	if newsDate.IsZero() {
		newsDate = time.Now().UTC()
	}

	p := &models.Production{
		ID:            uuid.New(),
		ChannelID:     channelID,
		NewsDate:      newsDate,
		SegmentStatus: make(models.SegmentStatusMap),
		WizardState:   models.NewWizardState(),
	}
	if err := s.repo.Create(ctx, s.db, p); err != nil {
		return nil, err
	}
	s.logger.Info("Production created", zap.String("productionID", p.ID.String()), zap.String("channelID", channelID))
	return p, nil
}

// GetProduction loads a production by id.
func (s *WizardService) GetProduction(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	return s.load(ctx, id)
}

// ListProductions returns recent productions for a channel.
func (s *WizardService) ListProductions(ctx context.Context, channelID string, limit int) ([]*models.Production, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByChannel(ctx, s.db, channelID, limit)
}

// FetchNews runs the news_fetch step and advances to news_select.
func (s *WizardService) FetchNews(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.steps.MarkInProgress(p, models.StepNewsFetch)
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepNewsFetch, "fetching news")

	items, err := s.news.FetchNews(ctx, p.ChannelID, p.NewsDate)
	if err != nil {
		return nil, s.failStep(ctx, p, models.StepNewsFetch, err)
	}

	p.FetchedNews = items
	// Fresh news invalidates any previous selection.
	p.SelectedNewsIDs = nil
	s.steps.CompleteAndAdvance(p, models.StepNewsFetch,
		&models.StepData{NewsFetch: &models.NewsFetchData{TotalFetched: len(items), FetchedAt: time.Now().UTC()}},
		nil)
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepNewsFetch, "news fetched")
	return p, nil
}

// SelectNews records the news selection and advances to script_generate.
func (s *WizardService) SelectNews(ctx context.Context, id uuid.UUID, newsIDs []string) (*models.Production, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.steps.CanEnter(p, models.StepNewsSelect); err != nil {
		return nil, err
	}
	if len(newsIDs) == 0 {
		return nil, &models.ValidationError{Field: "news_ids", Reason: "must select at least one item"}
	}
	known := make(map[string]bool, len(p.FetchedNews))
	for _, item := range p.FetchedNews {
		known[item.ID] = true
	}
	for _, newsID := range newsIDs {
		if !known[newsID] {
			return nil, &models.ValidationError{Field: "news_ids", Reason: fmt.Sprintf("unknown news id %q", newsID)}
		}
	}

	p.SelectedNewsIDs = newsIDs
	s.steps.CompleteAndAdvance(p, models.StepNewsSelect,
		&models.StepData{NewsSelect: &models.NewsSelectData{SelectedCount: len(newsIDs)}},
		nil)
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepNewsSelect, "news selected")
	return p, nil
}

// GenerateScript runs script generation for the current selection. The
// result replaces the working script, resets all segment progress and is
// appended to the immutable history.
func (s *WizardService) GenerateScript(ctx context.Context, id uuid.UUID, improvements []string) (*models.Production, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.steps.CanEnter(p, models.StepScriptGenerate); err != nil {
		return nil, err
	}

	s.steps.MarkInProgress(p, models.StepScriptGenerate)
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepScriptGenerate, "generating script")

	result, err := s.scripts.Generate(ctx, p, improvements)
	if err != nil {
		return nil, s.failStep(ctx, p, models.StepScriptGenerate, err)
	}

	version := len(p.ScriptHistory) + 1
	p.Script = result.Script
	p.ViralMetadata = result.Viral
	p.Segments = result.Segments
	p.SegmentStatus = make(models.SegmentStatusMap, len(result.Segments))
	p.ScriptHistory = append(p.ScriptHistory, models.ScriptHistoryItem{
		Version:       version,
		Script:        result.Script,
		ViralMetadata: result.Viral,
		Quality:       result.Quality,
		Improvements:  improvements,
		CreatedAt:     time.Now().UTC(),
	})

	if err := s.repo.UpdateScript(ctx, s.db, p.ID, p.Script, p.ViralMetadata, p.Segments, p.SegmentStatus, p.ScriptHistory); err != nil {
		return nil, err
	}

	s.steps.CompleteAndAdvance(p, models.StepScriptGenerate,
		&models.StepData{ScriptGenerate: &models.ScriptGenerateData{SceneCount: len(result.Script), Version: version}},
		nil)
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepScriptGenerate, "script generated")
	return p, nil
}

// ApproveScript completes the review step and seeds the audio batch.
func (s *WizardService) ApproveScript(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.steps.CanEnter(p, models.StepScriptReview); err != nil {
		return nil, err
	}

	s.steps.CompleteAndAdvance(p, models.StepScriptReview,
		&models.StepData{ScriptReview: &models.ScriptReviewData{ApprovedVersion: len(p.ScriptHistory)}},
		&models.StepData{AudioGenerate: &models.BatchProgressData{Total: len(p.Segments), Pending: len(p.Segments)}})
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepScriptReview, "script approved")
	return p, nil
}

// EditSegmentText replaces one segment's text and clears only that
// segment's audio so the next audio batch regenerates it alone.
func (s *WizardService) EditSegmentText(ctx context.Context, id uuid.UUID, index int, text string) (*models.Production, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(p.Segments) {
		return nil, &models.ValidationError{Field: "segment_index", Reason: fmt.Sprintf("index %d out of range", index)}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &models.ValidationError{Field: "text", Reason: "must not be empty"}
	}

	p.Segments[index].Text = text
	p.ResetSegmentAudio(index)

	if err := s.repo.UpdateSegments(ctx, s.db, p.ID, p.Segments, p.SegmentStatus); err != nil {
		return nil, err
	}

	// The audio step is no longer complete for this segment.
	audioState := p.WizardState.Step(models.StepAudioGenerate)
	if audioState.Status == models.StepStatusCompleted {
		audioState.Status = models.StepStatusPending
		audioState.CompletedAt = nil
	}
	audioState.Data = &models.StepData{AudioGenerate: s.batchProgress(p, MediaAudio)}
	p.WizardState.UpdatedAt = time.Now().UTC()
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RestoreScriptVersion reinstates a historical script version as the
// working script. The restore itself is appended as a new history entry
// so the history stays append-only.
func (s *WizardService) RestoreScriptVersion(ctx context.Context, id uuid.UUID, version int) (*models.Production, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var restored *models.ScriptHistoryItem
	for i := range p.ScriptHistory {
		if p.ScriptHistory[i].Version == version {
			restored = &p.ScriptHistory[i]
			break
		}
	}
	if restored == nil {
		return nil, &models.ValidationError{Field: "version", Reason: fmt.Sprintf("script version %d does not exist", version)}
	}

	p.Script = restored.Script
	p.ViralMetadata = restored.ViralMetadata
	p.Segments = SegmentsFromScript(restored.Script)
	p.SegmentStatus = make(models.SegmentStatusMap, len(p.Segments))
	p.ScriptHistory = append(p.ScriptHistory, models.ScriptHistoryItem{
		Version:       len(p.ScriptHistory) + 1,
		Script:        restored.Script,
		ViralMetadata: restored.ViralMetadata,
		Quality:       restored.Quality,
		Improvements:  []string{fmt.Sprintf("restored from version %d", version)},
		CreatedAt:     time.Now().UTC(),
	})

	if err := s.repo.UpdateScript(ctx, s.db, p.ID, p.Script, p.ViralMetadata, p.Segments, p.SegmentStatus, p.ScriptHistory); err != nil {
		return nil, err
	}

	p.WizardState.CurrentStep = models.StepScriptReview
	reviewState := p.WizardState.Step(models.StepScriptReview)
	reviewState.Status = models.StepStatusPending
	reviewState.CompletedAt = nil
	p.WizardState.UpdatedAt = time.Now().UTC()
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepScriptReview, fmt.Sprintf("restored script version %d", version))
	return p, nil
}

// Navigate moves currentStep to the requested step. A rejected
// navigation returns the readiness error and mutates nothing.
func (s *WizardService) Navigate(ctx context.Context, id uuid.UUID, step models.WizardStep) (*models.Production, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.steps.CanEnter(p, step); err != nil {
		return nil, err
	}

	p.WizardState.CurrentStep = step
	p.WizardState.UpdatedAt = time.Now().UTC()
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// StartBatch launches an audio or video generation batch in the
// background. Returns models.ErrBatchInProgress while a batch for the
// same production and media is still running. With onlyIndex set the
// batch retries a single segment.
func (s *WizardService) StartBatch(ctx context.Context, id uuid.UUID, media string, onlyIndex *int) (*models.Production, error) {
	if media != MediaAudio && media != MediaVideo {
		return nil, &models.ValidationError{Field: "media", Reason: "must be audio or video"}
	}
	step := s.segments.step(media)

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.steps.CanEnter(p, step); err != nil {
		return nil, err
	}

	s.steps.MarkInProgress(p, step)
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, step, "batch started")

	key := batchKey(id, step)
	_, err = s.tasks.Submit(key, func(taskCtx context.Context) error {
		return s.runBatch(taskCtx, id, media, onlyIndex)
	})
	if errors.Is(err, taskmanager.ErrKeyBusy) {
		return nil, models.ErrBatchInProgress
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// runBatch is the task body. It loads fresh state, runs the batch and
// finalizes the wizard step from the result.
func (s *WizardService) runBatch(ctx context.Context, id uuid.UUID, media string, onlyIndex *int) error {
	step := s.segments.step(media)

	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	result, runErr := s.segments.Run(ctx, p, media, onlyIndex)

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	// Finalization persists even when the batch was cancelled.
	finalCtx := context.WithoutCancel(ctx)

	if result == nil {
		return s.failStep(finalCtx, p, step, runErr)
	}

	data := &models.StepData{}
	if media == MediaAudio {
		data.AudioGenerate = result.Progress()
	} else {
		data.VideoGenerate = result.Progress()
	}

	switch {
	case result.Complete():
		var nextData *models.StepData
		if step == models.StepAudioGenerate {
			nextData = &models.StepData{VideoGenerate: &models.BatchProgressData{Total: result.Total, Pending: result.Total}}
		}
		s.steps.CompleteAndAdvance(p, step, data, nextData)
	case errors.Is(runErr, models.ErrBatchCancelled):
		state := p.WizardState.Step(step)
		state.Status = models.StepStatusPending
		state.Data = data
		p.WizardState.UpdatedAt = time.Now().UTC()
	default:
		state := p.WizardState.Step(step)
		state.Status = models.StepStatusFailed
		state.Error = fmt.Sprintf("%d of %d units failed", result.Failed, result.Total)
		state.Data = data
		p.WizardState.UpdatedAt = time.Now().UTC()
	}

	if err := s.snapshot(finalCtx, p); err != nil {
		return err
	}
	s.notifyStep(finalCtx, p, step, "batch finished")
	return runErr
}

// CancelBatch requests cooperative cancellation of the running batch.
func (s *WizardService) CancelBatch(id uuid.UUID, media string) error {
	if media != MediaAudio && media != MediaVideo {
		return &models.ValidationError{Field: "media", Reason: "must be audio or video"}
	}
	err := s.tasks.Cancel(batchKey(id, s.segments.step(media)))
	if errors.Is(err, taskmanager.ErrTaskNotFound) {
		return models.ErrNotFound
	}
	return err
}

// RenderFinal composes the final video and advances to publish.
func (s *WizardService) RenderFinal(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.steps.CanEnter(p, models.StepRenderFinal); err != nil {
		return nil, err
	}

	s.steps.MarkInProgress(p, models.StepRenderFinal)
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepRenderFinal, "rendering final video")

	videoURL, posterURL, err := s.renderer.RenderFinal(ctx, p)
	if err != nil {
		return nil, s.failStep(ctx, p, models.StepRenderFinal, err)
	}

	p.FinalVideoURL = videoURL
	p.PosterURL = posterURL
	if err := s.repo.SetFinalVideo(ctx, s.db, p.ID, videoURL, posterURL); err != nil {
		return nil, err
	}

	s.steps.CompleteAndAdvance(p, models.StepRenderFinal,
		&models.StepData{RenderFinal: &models.RenderFinalData{VideoURL: videoURL, PosterURL: posterURL}},
		nil)
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepRenderFinal, "final video ready")
	return p, nil
}

// Publish uploads the final video to YouTube and closes the wizard.
func (s *WizardService) Publish(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.steps.CanEnter(p, models.StepPublish); err != nil {
		return nil, err
	}
	if s.youtube == nil || !s.youtube.Configured() {
		return nil, &models.ConfigurationError{Key: "YOUTUBE_REFRESH_TOKEN", Hint: "set the YouTube OAuth credentials to enable publishing"}
	}

	s.steps.MarkInProgress(p, models.StepPublish)
	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepPublish, "publishing")

	videoID, err := s.youtube.Upload(ctx, p.FinalVideoURL, p.ViralMetadata)
	if err != nil {
		return nil, s.failStep(ctx, p, models.StepPublish, err)
	}

	p.YouTubeVideoID = videoID
	if err := s.repo.SetYouTubeVideoID(ctx, s.db, p.ID, videoID); err != nil {
		return nil, err
	}

	s.steps.CompleteAndAdvance(p, models.StepPublish,
		&models.StepData{Publish: &models.PublishData{YouTubeVideoID: videoID}},
		nil)
	// done is a terminal marker, not a step with work of its own.
	doneState := p.WizardState.Step(models.StepDone)
	doneState.Status = models.StepStatusCompleted
	now := time.Now().UTC()
	doneState.CompletedAt = &now

	if err := s.snapshot(ctx, p); err != nil {
		return nil, err
	}
	s.notifyStep(ctx, p, models.StepPublish, "published")
	return p, nil
}

func (s *WizardService) load(ctx context.Context, id uuid.UUID) (*models.Production, error) {
	p, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if p.WizardState == nil {
		p.WizardState = models.NewWizardState()
	}
	if p.SegmentStatus == nil {
		p.SegmentStatus = make(models.SegmentStatusMap)
	}
	return p, nil
}

func (s *WizardService) snapshot(ctx context.Context, p *models.Production) error {
	return s.repo.SaveWizardSnapshot(ctx, s.db, p.ID, p.WizardState, p.FetchedNews, p.SelectedNewsIDs)
}

// failStep records the failure on the step, persists the snapshot and
// returns the original error.
func (s *WizardService) failStep(ctx context.Context, p *models.Production, step models.WizardStep, cause error) error {
	s.steps.MarkFailed(p, step, cause)
	if err := s.snapshot(ctx, p); err != nil {
		s.logger.Error("Failed to persist failure snapshot",
			zap.String("productionID", p.ID.String()), zap.String("step", string(step)), zap.Error(err))
	}
	s.notifyStep(ctx, p, step, "step failed")
	return cause
}

func (s *WizardService) batchProgress(p *models.Production, media string) *models.BatchProgressData {
	return s.segments.tally(p, media).Progress()
}

func (s *WizardService) notifyStep(ctx context.Context, p *models.Production, step models.WizardStep, message string) {
	state := p.WizardState.Step(step)
	update := messaging.ProgressUpdate{
		ProductionID: p.ID.String(),
		Kind:         messaging.ProgressKindStep,
		Step:         step,
		StepStatus:   state.Status,
		Error:        state.Error,
		Message:      message,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.progress.PublishProgress(ctx, update); err != nil {
		s.logger.Warn("Failed to publish step progress",
			zap.String("productionID", p.ID.String()), zap.String("step", string(step)), zap.Error(err))
	}
}

func batchKey(id uuid.UUID, step models.WizardStep) string {
	return fmt.Sprintf("%s:%s", id, step)
}
