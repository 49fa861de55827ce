package mocks

import (
	"context"

	"newsroom-server/internal/interfaces"
	"newsroom-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockProductionRepository is a mock type for interfaces.ProductionRepository.
type MockProductionRepository struct {
	mock.Mock
}

var _ interfaces.ProductionRepository = (*MockProductionRepository)(nil)

func (m *MockProductionRepository) Create(ctx context.Context, querier interfaces.DBTX, p *models.Production) error {
	ret := m.Called(ctx, querier, p)
	return ret.Error(0)
}

func (m *MockProductionRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Production, error) {
	ret := m.Called(ctx, querier, id)
	var p *models.Production
	if ret.Get(0) != nil {
		p = ret.Get(0).(*models.Production)
	}
	return p, ret.Error(1)
}

func (m *MockProductionRepository) ListByChannel(ctx context.Context, querier interfaces.DBTX, channelID string, limit int) ([]*models.Production, error) {
	ret := m.Called(ctx, querier, channelID, limit)
	var productions []*models.Production
	if ret.Get(0) != nil {
		productions = ret.Get(0).([]*models.Production)
	}
	return productions, ret.Error(1)
}

func (m *MockProductionRepository) SaveWizardSnapshot(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, state *models.WizardState, fetchedNews []models.NewsItem, selectedNewsIDs []string) error {
	ret := m.Called(ctx, querier, id, state, fetchedNews, selectedNewsIDs)
	return ret.Error(0)
}

func (m *MockProductionRepository) UpdateScript(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, script models.Script, viral *models.ViralMetadata, segments []models.Segment, status models.SegmentStatusMap, history []models.ScriptHistoryItem) error {
	ret := m.Called(ctx, querier, id, script, viral, segments, status, history)
	return ret.Error(0)
}

func (m *MockProductionRepository) UpdateSegments(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, segments []models.Segment, status models.SegmentStatusMap) error {
	ret := m.Called(ctx, querier, id, segments, status)
	return ret.Error(0)
}

func (m *MockProductionRepository) UpdateSegmentStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.SegmentStatusMap) error {
	ret := m.Called(ctx, querier, id, status)
	return ret.Error(0)
}

func (m *MockProductionRepository) SetFinalVideo(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, videoURL, posterURL string) error {
	ret := m.Called(ctx, querier, id, videoURL, posterURL)
	return ret.Error(0)
}

func (m *MockProductionRepository) SetYouTubeVideoID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, videoID string) error {
	ret := m.Called(ctx, querier, id, videoID)
	return ret.Error(0)
}

// NewMockProductionRepository creates the mock and registers the test
// cleanup assertions.
func NewMockProductionRepository(t interface {
	mock.TestingT
	Helper()
}) *MockProductionRepository {
	m := &MockProductionRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}
