package models

import (
	"time"

	"github.com/google/uuid"
)

// NewsItem is one fetched headline candidate.
type NewsItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	Source  string `json:"source,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Scene is one keyed entry of a generated script.
type Scene struct {
	Title   string `json:"title,omitempty"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Script is the keyed scene map produced by script generation.
type Script map[string]Scene

// ViralMetadata is the publishing metadata generated alongside a script.
type ViralMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// Segment is one line of narration with its generated media. Segments and
// SegmentStatusMap entries are positionally linked by index.
type Segment struct {
	Speaker       string  `json:"speaker"`
	Text          string  `json:"text"`
	SceneTitle    string  `json:"scene_title,omitempty"`
	SceneKey      string  `json:"scene_key"`
	AudioURL      string  `json:"audio_url,omitempty"`
	AudioDuration float64 `json:"audio_duration,omitempty"`
	VideoURL      string  `json:"video_url,omitempty"`
}

// UnitStatus is the per-segment generation status for one media kind.
type UnitStatus string

const (
	UnitPending    UnitStatus = "pending"
	UnitGenerating UnitStatus = "generating"
	UnitDone       UnitStatus = "done"
	UnitFailed     UnitStatus = "failed"
)

// SegmentStatus is the authoritative progress record for one segment.
// Invariants: Audio/Video == done implies the matching URL is non-empty,
// failed implies Error is non-empty, and no other status carries a URL.
type SegmentStatus struct {
	Audio         UnitStatus `json:"audio"`
	AudioURL      string     `json:"audio_url,omitempty"`
	Video         UnitStatus `json:"video"`
	VideoURL      string     `json:"video_url,omitempty"`
	VideoProvider string     `json:"video_provider,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// SegmentStatusMap is keyed by segment index. It must never contain an
// index that is not present in the segment list.
type SegmentStatusMap map[int]*SegmentStatus

// Status returns the entry for index i, creating a pending one if absent.
func (m SegmentStatusMap) Status(i int) *SegmentStatus {
	st, ok := m[i]
	if !ok {
		st = &SegmentStatus{Audio: UnitPending, Video: UnitPending}
		m[i] = st
	}
	return st
}

// AudioDone counts segments whose audio reached the done status with a URL.
func (m SegmentStatusMap) AudioDone() int {
	n := 0
	for _, st := range m {
		if st != nil && st.Audio == UnitDone && st.AudioURL != "" {
			n++
		}
	}
	return n
}

// VideoDone counts segments whose video reached the done status with a URL.
func (m SegmentStatusMap) VideoDone() int {
	n := 0
	for _, st := range m {
		if st != nil && st.Video == UnitDone && st.VideoURL != "" {
			n++
		}
	}
	return n
}

// QualityAnalysis holds optional script scoring produced by the analysis
// model.
type QualityAnalysis struct {
	Scores   map[string]float64 `json:"scores,omitempty"`
	Overall  float64            `json:"overall"`
	Comments string             `json:"comments,omitempty"`
}

// ScriptHistoryItem is an immutable record of one generated script
// version. History is append-only and never pruned automatically.
type ScriptHistoryItem struct {
	Version       int              `json:"version"`
	Script        Script           `json:"script"`
	ViralMetadata *ViralMetadata   `json:"viral_metadata,omitempty"`
	Quality       *QualityAnalysis `json:"quality,omitempty"`
	Improvements  []string         `json:"improvements,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Production is the top-level persisted record for one video-creation run.
type Production struct {
	ID              uuid.UUID           `db:"id" json:"id"`
	ChannelID       string              `db:"channel_id" json:"channel_id"`
	NewsDate        time.Time           `db:"news_date" json:"news_date"`
	FetchedNews     []NewsItem          `db:"fetched_news" json:"fetched_news,omitempty"`
	SelectedNewsIDs []string            `db:"selected_news_ids" json:"selected_news_ids,omitempty"`
	Script          Script              `db:"script" json:"script,omitempty"`
	ViralMetadata   *ViralMetadata      `db:"viral_metadata" json:"viral_metadata,omitempty"`
	Segments        []Segment           `db:"segments" json:"segments,omitempty"`
	SegmentStatus   SegmentStatusMap    `db:"segment_status" json:"segment_status,omitempty"`
	FinalVideoURL   string              `db:"final_video_url" json:"final_video_url,omitempty"`
	PosterURL       string              `db:"poster_url" json:"poster_url,omitempty"`
	YouTubeVideoID  string              `db:"youtube_video_id" json:"youtube_video_id,omitempty"`
	WizardState     *WizardState        `db:"wizard_state" json:"wizard_state,omitempty"`
	ScriptHistory   []ScriptHistoryItem `db:"script_history" json:"script_history,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// ResetSegmentAudio clears the audio side of segment i after its text was
// edited. Other segments are untouched.
func (p *Production) ResetSegmentAudio(i int) {
	if i < 0 || i >= len(p.Segments) {
		return
	}
	p.Segments[i].AudioURL = ""
	p.Segments[i].AudioDuration = 0
	if p.SegmentStatus == nil {
		return
	}
	st := p.SegmentStatus.Status(i)
	st.Audio = UnitPending
	st.AudioURL = ""
	st.Error = ""
}
