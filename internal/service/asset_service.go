package service

import (
	"context"
	"fmt"
	"strings"

	"newsroom-server/internal/interfaces"

	"go.uber.org/zap"
)

// Asset batch names. Batches keep one invocation under serverless
// execution-time ceilings; each batch is independent and idempotent.
const (
	BatchTransitionsEmphasis  = "transitions-emphasis"
	BatchNotificationsAmbient = "notifications-ambient"
	MusicBatchFirstHalf       = "first-half"
	MusicBatchSecondHalf      = "second-half"
)

// musicStyle is one named background music asset with its fixed
// generation configuration. The name maps 1:1 to music/<name>.mp3.
type musicStyle struct {
	Name     string
	Prompt   string
	LengthMs int
}

// soundEffect is one named effect asset, stored at
// sound-effects/<name>.mp3. Category selects it into a batch.
type soundEffect struct {
	Name     string
	Prompt   string
	Duration float64
	Category string
}

var musicStyles = []musicStyle{
	{Name: "podcast", Prompt: "calm lo-fi background music for a news podcast, steady and unobtrusive", LengthMs: 60000},
	{Name: "energetic", Prompt: "upbeat electronic track with driving percussion for fast-paced news", LengthMs: 60000},
	{Name: "dramatic", Prompt: "tense cinematic underscore with low strings for breaking news", LengthMs: 60000},
	{Name: "chill", Prompt: "relaxed ambient chillhop for casual commentary segments", LengthMs: 60000},
	{Name: "upbeat", Prompt: "bright pop instrumental with a positive mood for feel-good stories", LengthMs: 60000},
	{Name: "ambient", Prompt: "soft atmospheric pads for background filler", LengthMs: 60000},
}

var soundEffects = []soundEffect{
	{Name: "transition-whoosh", Prompt: "quick cinematic whoosh for a scene transition", Duration: 1.5, Category: "transition"},
	{Name: "transition-swipe", Prompt: "fast digital swipe sound for cutting between stories", Duration: 1.0, Category: "transition"},
	{Name: "emphasis-hit", Prompt: "deep impact hit to emphasize a headline", Duration: 1.0, Category: "emphasis"},
	{Name: "emphasis-riser", Prompt: "short tension riser building to a reveal", Duration: 2.0, Category: "emphasis"},
	{Name: "notification-ding", Prompt: "clean notification ding for an on-screen alert", Duration: 0.8, Category: "notification"},
	{Name: "notification-pop", Prompt: "soft bubble pop for a chat-style overlay", Duration: 0.5, Category: "notification"},
	{Name: "ambient-newsroom", Prompt: "distant newsroom chatter and keyboard ambience", Duration: 5.0, Category: "ambient"},
}

// AudioAssetGenerator generates music and effect audio. Satisfied by the
// ElevenLabs client.
type AudioAssetGenerator interface {
	Configured() bool
	GenerateMusic(ctx context.Context, prompt string, lengthMs int) ([]byte, error)
	GenerateSoundEffect(ctx context.Context, prompt string, durationSeconds float64) ([]byte, error)
}

// AssetRequest selects which assets one invocation covers.
type AssetRequest struct {
	Music        bool     `json:"music"`
	SoundEffects bool     `json:"soundEffects"`
	Regenerate   []string `json:"regenerate,omitempty"`
	Batch        string   `json:"batch,omitempty"`
	MusicBatch   string   `json:"musicBatch,omitempty"`
}

// AssetFailure is one per-asset error, reported in-band.
type AssetFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// AssetResults maps asset names to their public URLs.
type AssetResults struct {
	Music        map[string]string `json:"music"`
	SoundEffects map[string]string `json:"soundEffects"`
	Errors       []AssetFailure    `json:"errors"`
}

// AssetSummary is the aggregate accounting for one invocation.
type AssetSummary struct {
	MusicUploaded        int `json:"musicUploaded"`
	SoundEffectsUploaded int `json:"soundEffectsUploaded"`
	FromCache            int `json:"fromCache"`
	Generated            int `json:"generated"`
	Errors               int `json:"errors"`
}

// AssetReport is the full handler response. Partial failure is in-band;
// the HTTP layer always answers 200 when the handler itself ran.
type AssetReport struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Results AssetResults `json:"results"`
	Summary AssetSummary `json:"summary"`
}

// VerbatimFile is one externally hosted file to mirror into storage
// without generation.
type VerbatimFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"` // music or sound-effect
}

// AssetService implements cache-or-generate for the fixed music and
// sound-effect catalog. Storage is the source of truth; the URL cache
// only skips repeated listings for confirmed-existing objects.
type AssetService struct {
	store  interfaces.ObjectStore
	cache  interfaces.URLCache
	gen    AudioAssetGenerator
	logger *zap.Logger
}

// NewAssetService creates the asset service.
func NewAssetService(store interfaces.ObjectStore, cache interfaces.URLCache, gen AudioAssetGenerator, logger *zap.Logger) *AssetService {
	return &AssetService{store: store, cache: cache, gen: gen, logger: logger.Named("AssetService")}
}

// EnsureAssets runs one cache-or-generate invocation. It never returns
// an error; every per-asset problem lands in the report's error list.
func (s *AssetService) EnsureAssets(ctx context.Context, req AssetRequest) *AssetReport {
	report := &AssetReport{
		Results: AssetResults{
			Music:        make(map[string]string),
			SoundEffects: make(map[string]string),
		},
	}
	regenerate := make(map[string]bool, len(req.Regenerate))
	for _, name := range req.Regenerate {
		regenerate[strings.TrimSuffix(name, ".mp3")] = true
	}

	if req.Music {
		existing := s.listFolder(ctx, "music")
		for _, style := range selectMusic(req.MusicBatch) {
			url, generated, err := s.ensureOne(ctx, "music", style.Name, existing, regenerate[style.Name], func(ctx context.Context) ([]byte, error) {
				return s.gen.GenerateMusic(ctx, style.Prompt, style.LengthMs)
			})
			if err != nil {
				report.Results.Errors = append(report.Results.Errors, AssetFailure{File: style.Name + ".mp3", Error: err.Error()})
				continue
			}
			report.Results.Music[style.Name] = url
			report.Summary.MusicUploaded++
			if generated {
				report.Summary.Generated++
			} else {
				report.Summary.FromCache++
			}
		}
	}

	if req.SoundEffects {
		existing := s.listFolder(ctx, "sound-effects")
		for _, effect := range selectEffects(req.Batch) {
			url, generated, err := s.ensureOne(ctx, "sound-effects", effect.Name, existing, regenerate[effect.Name], func(ctx context.Context) ([]byte, error) {
				return s.gen.GenerateSoundEffect(ctx, effect.Prompt, effect.Duration)
			})
			if err != nil {
				report.Results.Errors = append(report.Results.Errors, AssetFailure{File: effect.Name + ".mp3", Error: err.Error()})
				continue
			}
			report.Results.SoundEffects[effect.Name] = url
			report.Summary.SoundEffectsUploaded++
			if generated {
				report.Summary.Generated++
			} else {
				report.Summary.FromCache++
			}
		}
	}

	report.Summary.Errors = len(report.Results.Errors)
	report.Success = report.Summary.Errors == 0
	report.Message = fmt.Sprintf("%d from cache, %d generated, %d failed",
		report.Summary.FromCache, report.Summary.Generated, report.Summary.Errors)

	s.logger.Info("Asset invocation finished",
		zap.Int("fromCache", report.Summary.FromCache),
		zap.Int("generated", report.Summary.Generated),
		zap.Int("errors", report.Summary.Errors))
	return report
}

// ensureOne resolves one asset: cache hit, storage hit, or generate and
// upload. generated reports whether a generation call happened.
func (s *AssetService) ensureOne(ctx context.Context, folder, name string, existing map[string]bool, force bool, generate func(context.Context) ([]byte, error)) (string, bool, error) {
	path := fmt.Sprintf("%s/%s.mp3", folder, name)

	if !force {
		if url, ok := s.cache.Get(ctx, path); ok {
			return url, false, nil
		}
		if existing[name+".mp3"] {
			url := s.store.PublicURL(path)
			s.cache.Set(ctx, path, url)
			return url, false, nil
		}
	}

	if !s.gen.Configured() {
		return "", false, fmt.Errorf("ELEVENLABS_API_KEY not configured, cannot generate %s", path)
	}

	data, err := generate(ctx)
	if err != nil {
		return "", false, err
	}
	if err := s.store.Upload(ctx, path, data, "audio/mpeg", true); err != nil {
		return "", false, fmt.Errorf("failed to upload %s: %w", path, err)
	}

	url := s.store.PublicURL(path)
	s.cache.Set(ctx, path, url)
	return url, true, nil
}

// UploadVerbatim mirrors externally hosted files into storage without
// any generation.
func (s *AssetService) UploadVerbatim(ctx context.Context, files []VerbatimFile) *AssetReport {
	report := &AssetReport{
		Results: AssetResults{
			Music:        make(map[string]string),
			SoundEffects: make(map[string]string),
		},
	}

	for _, file := range files {
		folder := "sound-effects"
		if file.Type == "music" {
			folder = "music"
		}
		name := strings.TrimSuffix(file.Name, ".mp3")
		path := fmt.Sprintf("%s/%s.mp3", folder, name)

		data, contentType, err := s.store.Download(ctx, file.URL)
		if err != nil {
			report.Results.Errors = append(report.Results.Errors, AssetFailure{File: file.Name, Error: err.Error()})
			continue
		}
		if contentType == "" {
			contentType = "audio/mpeg"
		}
		if err := s.store.Upload(ctx, path, data, contentType, true); err != nil {
			report.Results.Errors = append(report.Results.Errors, AssetFailure{File: file.Name, Error: err.Error()})
			continue
		}

		url := s.store.PublicURL(path)
		s.cache.Set(ctx, path, url)
		if folder == "music" {
			report.Results.Music[name] = url
			report.Summary.MusicUploaded++
		} else {
			report.Results.SoundEffects[name] = url
			report.Summary.SoundEffectsUploaded++
		}
	}

	report.Summary.Errors = len(report.Results.Errors)
	report.Success = report.Summary.Errors == 0
	report.Message = fmt.Sprintf("%d uploaded, %d failed",
		report.Summary.MusicUploaded+report.Summary.SoundEffectsUploaded, report.Summary.Errors)
	return report
}

// listFolder returns the file names under a folder. A listing failure is
// treated as an empty folder; generation and upload still proceed.
func (s *AssetService) listFolder(ctx context.Context, folder string) map[string]bool {
	objects, err := s.store.List(ctx, folder)
	if err != nil {
		s.logger.Warn("Storage listing failed, assuming empty folder", zap.String("folder", folder), zap.Error(err))
		return map[string]bool{}
	}
	names := make(map[string]bool, len(objects))
	for _, obj := range objects {
		names[obj.Name] = true
	}
	return names
}

func selectMusic(batch string) []musicStyle {
	half := (len(musicStyles) + 1) / 2
	switch batch {
	case MusicBatchFirstHalf:
		return musicStyles[:half]
	case MusicBatchSecondHalf:
		return musicStyles[half:]
	default:
		return musicStyles
	}
}

func selectEffects(batch string) []soundEffect {
	var categories map[string]bool
	switch batch {
	case BatchTransitionsEmphasis:
		categories = map[string]bool{"transition": true, "emphasis": true}
	case BatchNotificationsAmbient:
		categories = map[string]bool{"notification": true, "ambient": true}
	default:
		return soundEffects
	}
	var out []soundEffect
	for _, effect := range soundEffects {
		if categories[effect.Category] {
			out = append(out, effect)
		}
	}
	return out
}
