package database_test

import (
	"context"
	"testing"
	"time"

	"newsroom-server/internal/database"
	"newsroom-server/internal/interfaces"
	"newsroom-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RepositoryIntegrationSuite runs the production repository against a
// real PostgreSQL container. Skipped in -short runs.
type RepositoryIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	repo        interfaces.ProductionRepository
}

func TestRepositoryIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration suite in short mode")
	}
	suite.Run(t, new(RepositoryIntegrationSuite))
}

func (s *RepositoryIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("newsroom_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "failed to start postgres container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "failed to connect to test postgres")

	require.NoError(s.T(), database.RunMigrations(s.pool), "failed to run migrations")

	s.repo = database.NewPgProductionRepository(s.pool, zap.NewNop())
}

func (s *RepositoryIntegrationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *RepositoryIntegrationSuite) newStoredProduction(channelID string) *models.Production {
	p := &models.Production{
		ID:        uuid.New(),
		ChannelID: channelID,
		NewsDate:  time.Now().UTC(),
		FetchedNews: []models.NewsItem{
			{ID: "n1", Title: "First", Summary: "summary one"},
			{ID: "n2", Title: "Second"},
		},
		SegmentStatus: models.SegmentStatusMap{},
		WizardState:   models.NewWizardState(),
	}
	require.NoError(s.T(), s.repo.Create(s.ctx, s.pool, p))
	return p
}

func (s *RepositoryIntegrationSuite) TestCreateAndGetRoundtrip() {
	p := s.newStoredProduction("roundtrip-channel")

	got, err := s.repo.GetByID(s.ctx, s.pool, p.ID)
	s.Require().NoError(err)

	s.Equal(p.ID, got.ID)
	s.Equal("roundtrip-channel", got.ChannelID)
	s.Len(got.FetchedNews, 2)
	s.Equal("First", got.FetchedNews[0].Title)
	s.Require().NotNil(got.WizardState)
	s.Equal(models.StepNewsFetch, got.WizardState.CurrentStep)
	s.Equal(models.StepStatusPending, got.WizardState.Step(models.StepNewsSelect).Status)
	s.Empty(got.FinalVideoURL)
}

func (s *RepositoryIntegrationSuite) TestGetMissingReturnsNotFound() {
	_, err := s.repo.GetByID(s.ctx, s.pool, uuid.New())
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestSaveWizardSnapshotPersistsProgress() {
	p := s.newStoredProduction("snapshot-channel")

	p.WizardState.CurrentStep = models.StepNewsSelect
	state := p.WizardState.Step(models.StepNewsFetch)
	state.Status = models.StepStatusCompleted
	now := time.Now().UTC()
	state.CompletedAt = &now
	p.SelectedNewsIDs = []string{"n2"}

	err := s.repo.SaveWizardSnapshot(s.ctx, s.pool, p.ID, p.WizardState, p.FetchedNews, p.SelectedNewsIDs)
	s.Require().NoError(err)

	got, err := s.repo.GetByID(s.ctx, s.pool, p.ID)
	s.Require().NoError(err)
	s.Equal(models.StepNewsSelect, got.WizardState.CurrentStep)
	s.Equal(models.StepStatusCompleted, got.WizardState.Step(models.StepNewsFetch).Status)
	s.Equal([]string{"n2"}, got.SelectedNewsIDs)
}

func (s *RepositoryIntegrationSuite) TestSnapshotForMissingProductionReturnsNotFound() {
	err := s.repo.SaveWizardSnapshot(s.ctx, s.pool, uuid.New(), models.NewWizardState(), nil, nil)
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestUpdateScriptReplacesWorkingSet() {
	p := s.newStoredProduction("script-channel")

	script := models.Script{
		"scene_01": {Speaker: "anchor_a", Text: "hello"},
		"scene_02": {Speaker: "anchor_b", Text: "world"},
	}
	viral := &models.ViralMetadata{Title: "Hello World", Tags: []string{"news"}}
	segments := []models.Segment{
		{Speaker: "anchor_a", Text: "hello", SceneKey: "scene_01"},
		{Speaker: "anchor_b", Text: "world", SceneKey: "scene_02"},
	}
	history := []models.ScriptHistoryItem{
		{Version: 1, Script: script, ViralMetadata: viral, CreatedAt: time.Now().UTC()},
	}

	err := s.repo.UpdateScript(s.ctx, s.pool, p.ID, script, viral, segments, models.SegmentStatusMap{}, history)
	s.Require().NoError(err)

	got, err := s.repo.GetByID(s.ctx, s.pool, p.ID)
	s.Require().NoError(err)
	s.Len(got.Script, 2)
	s.Equal("hello", got.Script["scene_01"].Text)
	s.Require().NotNil(got.ViralMetadata)
	s.Equal("Hello World", got.ViralMetadata.Title)
	s.Len(got.Segments, 2)
	s.Require().Len(got.ScriptHistory, 1)
	s.Equal(1, got.ScriptHistory[0].Version)
}

func (s *RepositoryIntegrationSuite) TestUpdateSegmentStatusKeepsOtherColumns() {
	p := s.newStoredProduction("status-channel")

	status := models.SegmentStatusMap{
		0: {Audio: models.UnitDone, AudioURL: "http://cdn/0.mp3", Video: models.UnitPending},
	}
	s.Require().NoError(s.repo.UpdateSegmentStatus(s.ctx, s.pool, p.ID, status))

	got, err := s.repo.GetByID(s.ctx, s.pool, p.ID)
	s.Require().NoError(err)
	s.Equal(models.UnitDone, got.SegmentStatus.Status(0).Audio)
	s.Equal("http://cdn/0.mp3", got.SegmentStatus.Status(0).AudioURL)
	s.Len(got.FetchedNews, 2, "news columns are untouched by segment writes")
}

func (s *RepositoryIntegrationSuite) TestSetFinalVideoAndPublish() {
	p := s.newStoredProduction("publish-channel")

	s.Require().NoError(s.repo.SetFinalVideo(s.ctx, s.pool, p.ID, "http://cdn/final.mp4", "http://cdn/poster.jpg"))
	s.Require().NoError(s.repo.SetYouTubeVideoID(s.ctx, s.pool, p.ID, "yt-abc"))

	got, err := s.repo.GetByID(s.ctx, s.pool, p.ID)
	s.Require().NoError(err)
	s.Equal("http://cdn/final.mp4", got.FinalVideoURL)
	s.Equal("http://cdn/poster.jpg", got.PosterURL)
	s.Equal("yt-abc", got.YouTubeVideoID)

	s.ErrorIs(s.repo.SetFinalVideo(s.ctx, s.pool, uuid.New(), "x", ""), models.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestListByChannelNewestFirst() {
	first := s.newStoredProduction("list-channel")
	time.Sleep(20 * time.Millisecond)
	second := s.newStoredProduction("list-channel")

	listed, err := s.repo.ListByChannel(s.ctx, s.pool, "list-channel", 10)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(second.ID, listed[0].ID)
	s.Equal(first.ID, listed[1].ID)

	limited, err := s.repo.ListByChannel(s.ctx, s.pool, "list-channel", 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}
