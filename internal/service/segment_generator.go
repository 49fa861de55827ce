package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"newsroom-server/internal/interfaces"
	"newsroom-server/internal/messaging"
	"newsroom-server/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch media kinds.
const (
	MediaAudio = "audio"
	MediaVideo = "video"
)

// BatchResult summarizes one generation batch over the segment list.
type BatchResult struct {
	Total   int
	Done    int
	Failed  int
	Pending int
	// Skipped is true when every requested unit was already done and the
	// batch performed no work and no writes.
	Skipped bool
}

// Progress converts the result into the step payload shape.
func (r *BatchResult) Progress() *models.BatchProgressData {
	return &models.BatchProgressData{Total: r.Total, Done: r.Done, Failed: r.Failed, Pending: r.Pending}
}

// Complete reports whether every unit reached done.
func (r *BatchResult) Complete() bool {
	return r.Total > 0 && r.Done == r.Total
}

// SegmentGenerator runs bounded-concurrency media batches over a
// production's segments. One batch at a time per production and step;
// the wizard service enforces that through the task manager.
type SegmentGenerator struct {
	repo             interfaces.ProductionRepository
	db               interfaces.DBTX
	store            interfaces.ObjectStore
	speech           SpeechGenerator
	video            VideoGenerator
	publisher        messaging.ProgressPublisher
	voiceID          string
	audioConcurrency int
	videoConcurrency int
	logger           *zap.Logger
}

// NewSegmentGenerator creates the batch engine. Concurrency caps below 1
// are clamped to 1.
func NewSegmentGenerator(
	repo interfaces.ProductionRepository,
	db interfaces.DBTX,
	store interfaces.ObjectStore,
	speech SpeechGenerator,
	video VideoGenerator,
	publisher messaging.ProgressPublisher,
	voiceID string,
	audioConcurrency, videoConcurrency int,
	logger *zap.Logger,
) *SegmentGenerator {
	if audioConcurrency < 1 {
		audioConcurrency = 1
	}
	if videoConcurrency < 1 {
		videoConcurrency = 1
	}
	return &SegmentGenerator{
		repo:             repo,
		db:               db,
		store:            store,
		speech:           speech,
		video:            video,
		publisher:        publisher,
		voiceID:          voiceID,
		audioConcurrency: audioConcurrency,
		videoConcurrency: videoConcurrency,
		logger:           logger.Named("SegmentGenerator"),
	}
}

// Run executes one batch for the given media kind. With onlyIndex set the
// batch covers just that segment and its previous result is cleared
// first, so a retry cannot short-circuit on stale state.
//
// Protocol, in order: validate dependencies, compute the work set,
// short-circuit when it is empty, persist every work-set unit as
// generating, run units under the concurrency cap publishing one update
// per finished unit, then persist the final checkpoint. The checkpoint
// is written even when the batch was cancelled mid-flight.
func (g *SegmentGenerator) Run(ctx context.Context, p *models.Production, media string, onlyIndex *int) (*BatchResult, error) {
	if len(p.Segments) == 0 {
		return nil, &models.DependencyNotReadyError{Step: g.step(media), Reason: "no segments exist"}
	}
	if p.SegmentStatus == nil {
		p.SegmentStatus = make(models.SegmentStatusMap, len(p.Segments))
	}
	if onlyIndex != nil && (*onlyIndex < 0 || *onlyIndex >= len(p.Segments)) {
		return nil, &models.ValidationError{Field: "segment_index", Reason: fmt.Sprintf("index %d out of range", *onlyIndex)}
	}

	if onlyIndex != nil {
		g.clearUnit(p, *onlyIndex, media)
	}

	work := g.workSet(p, media, onlyIndex)

	if media == MediaVideo {
		if missing := g.missingAudio(p, work); len(missing) > 0 {
			return nil, &models.DependencyNotReadyError{
				Step:    models.StepVideoGenerate,
				Missing: missing,
				Reason:  "segments are missing finished audio",
			}
		}
	}

	if len(work) == 0 {
		result := g.tally(p, media)
		result.Skipped = true
		g.logger.Info("Batch already complete, nothing to do",
			zap.String("productionID", p.ID.String()), zap.String("media", media))
		return result, nil
	}

	// Every unit about to run is visible as generating before the first
	// provider call, so a crash never leaves units silently pending.
	for _, i := range work {
		st := p.SegmentStatus.Status(i)
		g.setUnit(st, media, models.UnitGenerating, "", "")
		st.Error = ""
	}
	if err := g.repo.UpdateSegmentStatus(ctx, g.db, p.ID, p.SegmentStatus); err != nil {
		return nil, fmt.Errorf("failed to persist generating marks: %w", err)
	}

	var (
		mu     sync.Mutex
		done   int
		failed int
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.concurrency(media))

	for _, i := range work {
		group.Go(func() error {
			// Cooperative cancellation between units. In-flight units
			// finish, queued ones stop here.
			if err := groupCtx.Err(); err != nil {
				return err
			}

			url, provider, unitErr := g.generateUnit(groupCtx, p, i, media)

			mu.Lock()
			st := p.SegmentStatus.Status(i)
			if unitErr != nil {
				g.setUnit(st, media, models.UnitFailed, "", "")
				st.Error = unitErr.Error()
				failed++
			} else {
				g.setUnit(st, media, models.UnitDone, url, provider)
				done++
			}
			doneNow, failedNow := done, failed
			mu.Unlock()

			g.notifyUnit(groupCtx, p, i, media, st, doneNow, failedNow, len(work))
			return nil
		})
	}

	waitErr := group.Wait()

	// Checkpoint runs even after cancellation so finished units survive.
	checkpointCtx := context.WithoutCancel(ctx)
	if err := g.repo.UpdateSegments(checkpointCtx, g.db, p.ID, p.Segments, p.SegmentStatus); err != nil {
		return nil, fmt.Errorf("failed to persist batch checkpoint: %w", err)
	}

	result := g.tally(p, media)
	g.logger.Info("Batch finished",
		zap.String("productionID", p.ID.String()),
		zap.String("media", media),
		zap.Int("workUnits", len(work)),
		zap.Int("done", result.Done),
		zap.Int("failed", result.Failed),
		zap.Int("pending", result.Pending))

	if waitErr != nil {
		return result, fmt.Errorf("%w: %w", models.ErrBatchCancelled, waitErr)
	}
	return result, nil
}

// generateUnit produces one segment's media and returns the resulting
// URL plus, for video, the provider that produced it.
func (g *SegmentGenerator) generateUnit(ctx context.Context, p *models.Production, i int, media string) (string, string, error) {
	seg := &p.Segments[i]

	switch media {
	case MediaAudio:
		data, duration, err := g.speech.GenerateSpeech(ctx, seg.Text, g.voiceID)
		if err != nil {
			return "", "", err
		}
		path := fmt.Sprintf("productions/%s/audio/segment_%d.mp3", p.ID, i)
		if err := g.store.Upload(ctx, path, data, "audio/mpeg", true); err != nil {
			return "", "", fmt.Errorf("failed to store segment audio: %w", err)
		}
		url := g.store.PublicURL(path)
		seg.AudioURL = url
		seg.AudioDuration = duration
		return url, "", nil

	case MediaVideo:
		st := p.SegmentStatus.Status(i)
		prompt := g.videoPrompt(seg)
		url, provider, err := g.video.GenerateSegmentVideo(ctx, prompt, "", st.AudioURL)
		if err != nil {
			return "", "", err
		}
		seg.VideoURL = url
		return url, provider, nil

	default:
		return "", "", &models.ValidationError{Field: "media", Reason: "must be audio or video"}
	}
}

func (g *SegmentGenerator) videoPrompt(seg *models.Segment) string {
	scene := seg.SceneTitle
	if scene == "" {
		scene = seg.SceneKey
	}
	return fmt.Sprintf("News anchor %s presenting the segment %q, speaking: %s", seg.Speaker, scene, seg.Text)
}

// workSet returns the indices still needing work, in ascending order.
func (g *SegmentGenerator) workSet(p *models.Production, media string, onlyIndex *int) []int {
	if onlyIndex != nil {
		return []int{*onlyIndex}
	}
	var work []int
	for i := range p.Segments {
		st := p.SegmentStatus.Status(i)
		if !g.unitDone(st, media) {
			work = append(work, i)
		}
	}
	return work
}

// missingAudio returns the work-set indices whose audio is not done.
func (g *SegmentGenerator) missingAudio(p *models.Production, work []int) []int {
	var missing []int
	for _, i := range work {
		st := p.SegmentStatus.Status(i)
		if st.Audio != models.UnitDone || st.AudioURL == "" {
			missing = append(missing, i)
		}
	}
	sort.Ints(missing)
	return missing
}

// clearUnit resets one unit's previous result ahead of a retry.
func (g *SegmentGenerator) clearUnit(p *models.Production, i int, media string) {
	switch media {
	case MediaAudio:
		p.ResetSegmentAudio(i)
	case MediaVideo:
		p.Segments[i].VideoURL = ""
		st := p.SegmentStatus.Status(i)
		st.Video = models.UnitPending
		st.VideoURL = ""
		st.VideoProvider = ""
		st.Error = ""
	}
}

func (g *SegmentGenerator) unitDone(st *models.SegmentStatus, media string) bool {
	if media == MediaAudio {
		return st.Audio == models.UnitDone && st.AudioURL != ""
	}
	return st.Video == models.UnitDone && st.VideoURL != ""
}

func (g *SegmentGenerator) setUnit(st *models.SegmentStatus, media string, status models.UnitStatus, url, provider string) {
	if media == MediaAudio {
		st.Audio = status
		st.AudioURL = url
		return
	}
	st.Video = status
	st.VideoURL = url
	if provider != "" {
		st.VideoProvider = provider
	}
}

func (g *SegmentGenerator) tally(p *models.Production, media string) *BatchResult {
	result := &BatchResult{Total: len(p.Segments)}
	for i := range p.Segments {
		st := p.SegmentStatus.Status(i)
		switch {
		case g.unitDone(st, media):
			result.Done++
		case g.unitStatus(st, media) == models.UnitFailed:
			result.Failed++
		default:
			result.Pending++
		}
	}
	return result
}

func (g *SegmentGenerator) unitStatus(st *models.SegmentStatus, media string) models.UnitStatus {
	if media == MediaAudio {
		return st.Audio
	}
	return st.Video
}

func (g *SegmentGenerator) concurrency(media string) int {
	if media == MediaAudio {
		return g.audioConcurrency
	}
	return g.videoConcurrency
}

func (g *SegmentGenerator) step(media string) models.WizardStep {
	if media == MediaAudio {
		return models.StepAudioGenerate
	}
	return models.StepVideoGenerate
}

func (g *SegmentGenerator) notifyUnit(ctx context.Context, p *models.Production, i int, media string, st *models.SegmentStatus, done, failed, total int) {
	index := i
	update := messaging.ProgressUpdate{
		ProductionID: p.ID.String(),
		Kind:         messaging.ProgressKindSegment,
		Step:         g.step(media),
		SegmentIndex: &index,
		Media:        media,
		UnitStatus:   g.unitStatus(st, media),
		Error:        st.Error,
		Done:         done,
		Failed:       failed,
		Total:        total,
		Timestamp:    time.Now().UTC(),
	}
	if media == MediaAudio {
		update.URL = st.AudioURL
	} else {
		update.URL = st.VideoURL
	}
	if err := g.publisher.PublishProgress(ctx, update); err != nil {
		g.logger.Warn("Failed to publish segment progress",
			zap.String("productionID", p.ID.String()), zap.Int("segment", i), zap.Error(err))
	}
}
