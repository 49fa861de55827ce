package interfaces

import (
	"context"

	"newsroom-server/internal/models"

	"github.com/google/uuid"
)

// ProductionRepository persists production records. Every mutation is a
// whole-field-group upsert; the wizard service is the only writer during
// an open session.
type ProductionRepository interface {
	// Create inserts a new production record.
	Create(ctx context.Context, querier DBTX, p *models.Production) error

	// GetByID returns a production or models.ErrNotFound.
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Production, error)

	// ListByChannel returns recent productions for a channel, newest first.
	ListByChannel(ctx context.Context, querier DBTX, channelID string, limit int) ([]*models.Production, error)

	// SaveWizardSnapshot writes the wizard state plus the denormalized
	// news fields. Called synchronously after every wizard transition.
	SaveWizardSnapshot(ctx context.Context, querier DBTX, id uuid.UUID, state *models.WizardState, fetchedNews []models.NewsItem, selectedNewsIDs []string) error

	// UpdateScript replaces the script, metadata, segments and status map
	// and appends the given history items.
	UpdateScript(ctx context.Context, querier DBTX, id uuid.UUID, script models.Script, viral *models.ViralMetadata, segments []models.Segment, status models.SegmentStatusMap, history []models.ScriptHistoryItem) error

	// UpdateSegments replaces the segment list and status map together.
	UpdateSegments(ctx context.Context, querier DBTX, id uuid.UUID, segments []models.Segment, status models.SegmentStatusMap) error

	// UpdateSegmentStatus replaces the status map only. Used for the
	// pre-batch "generating" mark and the post-batch checkpoint.
	UpdateSegmentStatus(ctx context.Context, querier DBTX, id uuid.UUID, status models.SegmentStatusMap) error

	// SetFinalVideo records the rendered composite video.
	SetFinalVideo(ctx context.Context, querier DBTX, id uuid.UUID, videoURL, posterURL string) error

	// SetYouTubeVideoID marks the production published.
	SetYouTubeVideoID(ctx context.Context, querier DBTX, id uuid.UUID, videoID string) error
}
