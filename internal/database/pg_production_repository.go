package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"newsroom-server/internal/interfaces"
	"newsroom-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	productionFields = `id, channel_id, news_date, fetched_news, selected_news_ids, script, viral_metadata, segments, segment_status, final_video_url, poster_url, youtube_video_id, wizard_state, script_history, created_at, updated_at`

	insertProductionQuery = `
        INSERT INTO productions
            (id, channel_id, news_date, fetched_news, selected_news_ids, script, viral_metadata, segments, segment_status, wizard_state, script_history)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id
    `
	getProductionByIDQuery = `
        SELECT ` + productionFields + `
        FROM productions
        WHERE id = $1
    `
	listProductionsByChannelQuery = `
        SELECT ` + productionFields + `
        FROM productions
        WHERE channel_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	saveWizardSnapshotQuery = `
        UPDATE productions SET
            wizard_state = $2,
            fetched_news = $3,
            selected_news_ids = $4,
            updated_at = NOW()
        WHERE id = $1
    `
	updateScriptQuery = `
        UPDATE productions SET
            script = $2,
            viral_metadata = $3,
            segments = $4,
            segment_status = $5,
            script_history = $6,
            updated_at = NOW()
        WHERE id = $1
    `
	updateSegmentsQuery = `
        UPDATE productions SET
            segments = $2,
            segment_status = $3,
            updated_at = NOW()
        WHERE id = $1
    `
	updateSegmentStatusQuery = `
        UPDATE productions SET
            segment_status = $2,
            updated_at = NOW()
        WHERE id = $1
    `
	setFinalVideoQuery = `
        UPDATE productions SET
            final_video_url = $2,
            poster_url = $3,
            updated_at = NOW()
        WHERE id = $1
    `
	setYouTubeVideoIDQuery = `
        UPDATE productions SET
            youtube_video_id = $2,
            updated_at = NOW()
        WHERE id = $1
    `
)

// Compile-time interface check.
var _ interfaces.ProductionRepository = (*pgProductionRepository)(nil)

type pgProductionRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgProductionRepository creates the PostgreSQL-backed production
// repository.
func NewPgProductionRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.ProductionRepository {
	return &pgProductionRepository{
		db:     db,
		logger: logger.Named("PgProductionRepo"),
	}
}

// marshalJSONB serializes a field group for a jsonb column, writing SQL
// NULL for nil values.
func marshalJSONB(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb field: %w", err)
	}
	return json.RawMessage(raw), nil
}

func (r *pgProductionRepository) Create(ctx context.Context, querier interfaces.DBTX, p *models.Production) error {
	log := r.logger.With(zap.String("productionID", p.ID.String()), zap.String("channelID", p.ChannelID))

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.WizardState == nil {
		p.WizardState = models.NewWizardState()
	}
	if p.SegmentStatus == nil {
		p.SegmentStatus = models.SegmentStatusMap{}
	}
	if p.NewsDate.IsZero() {
		p.NewsDate = time.Now().UTC()
	}

	fetchedNews, err := marshalJSONB(p.FetchedNews)
	if err != nil {
		return err
	}
	selectedIDs, err := marshalJSONB(p.SelectedNewsIDs)
	if err != nil {
		return err
	}
	script, err := marshalJSONB(p.Script)
	if err != nil {
		return err
	}
	viral, err := marshalJSONB(p.ViralMetadata)
	if err != nil {
		return err
	}
	segments, err := marshalJSONB(p.Segments)
	if err != nil {
		return err
	}
	segmentStatus, err := marshalJSONB(p.SegmentStatus)
	if err != nil {
		return err
	}
	wizardState, err := marshalJSONB(p.WizardState)
	if err != nil {
		return err
	}
	history, err := marshalJSONB(p.ScriptHistory)
	if err != nil {
		return err
	}

	var insertedID uuid.UUID
	err = querier.QueryRow(ctx, insertProductionQuery,
		p.ID, p.ChannelID, p.NewsDate,
		fetchedNews, selectedIDs, script, viral, segments, segmentStatus, wizardState, history,
	).Scan(&insertedID)
	if err != nil {
		log.Error("Failed to insert production", zap.Error(err))
		return fmt.Errorf("failed to insert production: %w", err)
	}

	log.Info("Production created")
	return nil
}

func (r *pgProductionRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Production, error) {
	log := r.logger.With(zap.String("productionID", id.String()))

	var p models.Production
	err := pgxscan.Get(ctx, querier, &p, getProductionByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Warn("Production not found")
			return nil, models.ErrNotFound
		}
		log.Error("Failed to get production", zap.Error(err))
		return nil, fmt.Errorf("failed to get production %s: %w", id, err)
	}
	return &p, nil
}

func (r *pgProductionRepository) ListByChannel(ctx context.Context, querier interfaces.DBTX, channelID string, limit int) ([]*models.Production, error) {
	log := r.logger.With(zap.String("channelID", channelID))

	if limit <= 0 {
		limit = 20
	}
	var productions []*models.Production
	err := pgxscan.Select(ctx, querier, &productions, listProductionsByChannelQuery, channelID, limit)
	if err != nil {
		log.Error("Failed to list productions", zap.Error(err))
		return nil, fmt.Errorf("failed to list productions for channel %s: %w", channelID, err)
	}
	return productions, nil
}

func (r *pgProductionRepository) SaveWizardSnapshot(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, state *models.WizardState, fetchedNews []models.NewsItem, selectedNewsIDs []string) error {
	log := r.logger.With(zap.String("productionID", id.String()))

	stateJSON, err := marshalJSONB(state)
	if err != nil {
		return err
	}
	newsJSON, err := marshalJSONB(fetchedNews)
	if err != nil {
		return err
	}
	idsJSON, err := marshalJSONB(selectedNewsIDs)
	if err != nil {
		return err
	}

	tag, err := querier.Exec(ctx, saveWizardSnapshotQuery, id, stateJSON, newsJSON, idsJSON)
	if err != nil {
		log.Error("Failed to save wizard snapshot", zap.Error(err))
		return fmt.Errorf("failed to save wizard snapshot for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	if state != nil {
		log.Debug("Wizard snapshot saved", zap.String("currentStep", string(state.CurrentStep)))
	}
	return nil
}

func (r *pgProductionRepository) UpdateScript(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, script models.Script, viral *models.ViralMetadata, segments []models.Segment, status models.SegmentStatusMap, history []models.ScriptHistoryItem) error {
	log := r.logger.With(zap.String("productionID", id.String()))

	scriptJSON, err := marshalJSONB(script)
	if err != nil {
		return err
	}
	viralJSON, err := marshalJSONB(viral)
	if err != nil {
		return err
	}
	segmentsJSON, err := marshalJSONB(segments)
	if err != nil {
		return err
	}
	statusJSON, err := marshalJSONB(status)
	if err != nil {
		return err
	}
	historyJSON, err := marshalJSONB(history)
	if err != nil {
		return err
	}

	tag, err := querier.Exec(ctx, updateScriptQuery, id, scriptJSON, viralJSON, segmentsJSON, statusJSON, historyJSON)
	if err != nil {
		log.Error("Failed to update script", zap.Error(err))
		return fmt.Errorf("failed to update script for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	log.Info("Script updated", zap.Int("segments", len(segments)), zap.Int("historyLen", len(history)))
	return nil
}

func (r *pgProductionRepository) UpdateSegments(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, segments []models.Segment, status models.SegmentStatusMap) error {
	log := r.logger.With(zap.String("productionID", id.String()))

	segmentsJSON, err := marshalJSONB(segments)
	if err != nil {
		return err
	}
	statusJSON, err := marshalJSONB(status)
	if err != nil {
		return err
	}

	tag, err := querier.Exec(ctx, updateSegmentsQuery, id, segmentsJSON, statusJSON)
	if err != nil {
		log.Error("Failed to update segments", zap.Error(err))
		return fmt.Errorf("failed to update segments for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgProductionRepository) UpdateSegmentStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.SegmentStatusMap) error {
	log := r.logger.With(zap.String("productionID", id.String()))

	statusJSON, err := marshalJSONB(status)
	if err != nil {
		return err
	}

	tag, err := querier.Exec(ctx, updateSegmentStatusQuery, id, statusJSON)
	if err != nil {
		log.Error("Failed to update segment status", zap.Error(err))
		return fmt.Errorf("failed to update segment status for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgProductionRepository) SetFinalVideo(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, videoURL, posterURL string) error {
	log := r.logger.With(zap.String("productionID", id.String()))

	tag, err := querier.Exec(ctx, setFinalVideoQuery, id, videoURL, posterURL)
	if err != nil {
		log.Error("Failed to set final video", zap.Error(err))
		return fmt.Errorf("failed to set final video for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	log.Info("Final video recorded", zap.String("videoURL", videoURL))
	return nil
}

func (r *pgProductionRepository) SetYouTubeVideoID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, videoID string) error {
	log := r.logger.With(zap.String("productionID", id.String()))

	tag, err := querier.Exec(ctx, setYouTubeVideoIDQuery, id, videoID)
	if err != nil {
		log.Error("Failed to set youtube video id", zap.Error(err))
		return fmt.Errorf("failed to set youtube video id for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	log.Info("Production published", zap.String("youtubeVideoID", videoID))
	return nil
}
