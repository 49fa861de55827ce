package mocks

import (
	"context"

	"newsroom-server/internal/models"
	"newsroom-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockSpeechGenerator is a mock type for service.SpeechGenerator.
type MockSpeechGenerator struct {
	mock.Mock
}

var _ service.SpeechGenerator = (*MockSpeechGenerator)(nil)

func (m *MockSpeechGenerator) GenerateSpeech(ctx context.Context, text, voiceID string) ([]byte, float64, error) {
	ret := m.Called(ctx, text, voiceID)
	var data []byte
	if ret.Get(0) != nil {
		data = ret.Get(0).([]byte)
	}
	return data, ret.Get(1).(float64), ret.Error(2)
}

// NewMockSpeechGenerator creates the mock and registers the test cleanup
// assertions.
func NewMockSpeechGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockSpeechGenerator {
	m := &MockSpeechGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

// MockVideoGenerator is a mock type for service.VideoGenerator.
type MockVideoGenerator struct {
	mock.Mock
}

var _ service.VideoGenerator = (*MockVideoGenerator)(nil)

func (m *MockVideoGenerator) GenerateSegmentVideo(ctx context.Context, prompt, imageURL, audioURL string) (string, string, error) {
	ret := m.Called(ctx, prompt, imageURL, audioURL)
	return ret.String(0), ret.String(1), ret.Error(2)
}

// NewMockVideoGenerator creates the mock and registers the test cleanup
// assertions.
func NewMockVideoGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockVideoGenerator {
	m := &MockVideoGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

// MockScriptAnalyzer is a mock type for service.ScriptAnalyzer.
type MockScriptAnalyzer struct {
	mock.Mock
}

var _ service.ScriptAnalyzer = (*MockScriptAnalyzer)(nil)

func (m *MockScriptAnalyzer) AnalyzeScript(ctx context.Context, scriptText string) (*models.QualityAnalysis, error) {
	ret := m.Called(ctx, scriptText)
	var analysis *models.QualityAnalysis
	if ret.Get(0) != nil {
		analysis = ret.Get(0).(*models.QualityAnalysis)
	}
	return analysis, ret.Error(1)
}

// NewMockScriptAnalyzer creates the mock and registers the test cleanup
// assertions.
func NewMockScriptAnalyzer(t interface {
	mock.TestingT
	Helper()
}) *MockScriptAnalyzer {
	m := &MockScriptAnalyzer{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

// MockFinalRenderer is a mock type for service.FinalRenderer.
type MockFinalRenderer struct {
	mock.Mock
}

var _ service.FinalRenderer = (*MockFinalRenderer)(nil)

func (m *MockFinalRenderer) RenderFinal(ctx context.Context, p *models.Production) (string, string, error) {
	ret := m.Called(ctx, p)
	return ret.String(0), ret.String(1), ret.Error(2)
}

// NewMockFinalRenderer creates the mock and registers the test cleanup
// assertions.
func NewMockFinalRenderer(t interface {
	mock.TestingT
	Helper()
}) *MockFinalRenderer {
	m := &MockFinalRenderer{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

// MockVideoPublisher is a mock type for service.VideoPublisher.
type MockVideoPublisher struct {
	mock.Mock
}

var _ service.VideoPublisher = (*MockVideoPublisher)(nil)

func (m *MockVideoPublisher) Configured() bool {
	ret := m.Called()
	return ret.Bool(0)
}

func (m *MockVideoPublisher) Upload(ctx context.Context, videoURL string, meta *models.ViralMetadata) (string, error) {
	ret := m.Called(ctx, videoURL, meta)
	return ret.String(0), ret.Error(1)
}

// NewMockVideoPublisher creates the mock and registers the test cleanup
// assertions.
func NewMockVideoPublisher(t interface {
	mock.TestingT
	Helper()
}) *MockVideoPublisher {
	m := &MockVideoPublisher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

// MockAudioAssetGenerator is a mock type for service.AudioAssetGenerator.
type MockAudioAssetGenerator struct {
	mock.Mock
}

var _ service.AudioAssetGenerator = (*MockAudioAssetGenerator)(nil)

func (m *MockAudioAssetGenerator) Configured() bool {
	ret := m.Called()
	return ret.Bool(0)
}

func (m *MockAudioAssetGenerator) GenerateMusic(ctx context.Context, prompt string, lengthMs int) ([]byte, error) {
	ret := m.Called(ctx, prompt, lengthMs)
	var data []byte
	if ret.Get(0) != nil {
		data = ret.Get(0).([]byte)
	}
	return data, ret.Error(1)
}

func (m *MockAudioAssetGenerator) GenerateSoundEffect(ctx context.Context, prompt string, durationSeconds float64) ([]byte, error) {
	ret := m.Called(ctx, prompt, durationSeconds)
	var data []byte
	if ret.Get(0) != nil {
		data = ret.Get(0).([]byte)
	}
	return data, ret.Error(1)
}

// NewMockAudioAssetGenerator creates the mock and registers the test
// cleanup assertions.
func NewMockAudioAssetGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockAudioAssetGenerator {
	m := &MockAudioAssetGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}
