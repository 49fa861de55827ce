package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"newsroom-server/internal/clients"
	"newsroom-server/internal/models"
	"newsroom-server/internal/service"
	"newsroom-server/internal/service/mocks"
	"newsroom-server/pkg/taskmanager"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type wizardFixture struct {
	repo      *mocks.MockProductionRepository
	store     *mocks.MockObjectStore
	ai        *mocks.MockAIClient
	analyzer  *mocks.MockScriptAnalyzer
	speech    *mocks.MockSpeechGenerator
	video     *mocks.MockVideoGenerator
	renderer  *mocks.MockFinalRenderer
	youtube   *mocks.MockVideoPublisher
	publisher *mocks.MockProgressPublisher
	tasks     *taskmanager.Manager
	wizard    *service.WizardService
}

func newWizardFixture(t *testing.T) *wizardFixture {
	f := &wizardFixture{
		repo:      mocks.NewMockProductionRepository(t),
		store:     mocks.NewMockObjectStore(t),
		ai:        mocks.NewMockAIClient(t),
		analyzer:  mocks.NewMockScriptAnalyzer(t),
		speech:    mocks.NewMockSpeechGenerator(t),
		video:     mocks.NewMockVideoGenerator(t),
		renderer:  mocks.NewMockFinalRenderer(t),
		youtube:   mocks.NewMockVideoPublisher(t),
		publisher: mocks.NewMockProgressPublisher(t),
		tasks:     taskmanager.New(),
	}
	t.Cleanup(f.tasks.Close)

	logger := zap.NewNop()
	segments := service.NewSegmentGenerator(
		f.repo, nil, f.store, f.speech, f.video, f.publisher,
		"test-voice", 2, 4, logger)
	f.wizard = service.NewWizardService(
		f.repo, nil,
		service.NewWizardStepManager(logger),
		service.NewNewsService(f.ai, logger),
		service.NewScriptService(f.ai, f.analyzer, "gpt-4o", 8000, logger),
		segments,
		f.renderer,
		f.youtube,
		f.publisher,
		f.tasks,
		logger)
	return f
}

func (f *wizardFixture) expectLoad(p *models.Production) {
	f.repo.On("GetByID", mock.Anything, nil, p.ID).Return(p, nil)
}

func (f *wizardFixture) allowSnapshots() {
	f.repo.On("SaveWizardSnapshot", mock.Anything, nil, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("PublishProgress", mock.Anything, mock.Anything).Return(nil).Maybe()
}

const newsJSON = `{"news":[
	{"title":"Chips get faster","summary":"new fab online"},
	{"title":"Rocket lands","summary":"reuse milestone"}
]}`

const scriptJSON = "```json\n" + `{
	"scenes":{
		"scene_01":{"title":"Cold open","speaker":"anchor_a","text":"Big day in tech."},
		"scene_02":{"title":"Details","speaker":"anchor_b","text":"Here is what happened."}
	},
	"viral_metadata":{"title":"Tech in 60s","description":"Daily brief","tags":["tech"]}
}` + "\n```"

func TestFetchNewsAdvancesToNewsSelect(t *testing.T) {
	f := newWizardFixture(t)
	p := newProduction()
	f.expectLoad(p)
	f.allowSnapshots()
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return(newsJSON, clients.UsageInfo{TotalTokens: 42}, nil).Once()

	got, err := f.wizard.FetchNews(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StepNewsSelect, got.WizardState.CurrentStep)
	assert.Equal(t, models.StepStatusCompleted, got.WizardState.Step(models.StepNewsFetch).Status)
	require.Len(t, got.FetchedNews, 2)
	assert.NotEmpty(t, got.FetchedNews[0].ID, "every item gets a server-side id")
	require.NotNil(t, got.WizardState.Step(models.StepNewsFetch).Data)
	assert.Equal(t, 2, got.WizardState.Step(models.StepNewsFetch).Data.NewsFetch.TotalFetched)
}

func TestSelectNewsRejectsUnknownIDs(t *testing.T) {
	f := newWizardFixture(t)
	p := newProduction()
	p.FetchedNews = []models.NewsItem{{ID: "n1", Title: "A"}}
	f.expectLoad(p)

	_, err := f.wizard.SelectNews(context.Background(), p.ID, []string{"n1", "ghost"})
	assert.ErrorIs(t, err, models.ErrValidation)
	f.repo.AssertNotCalled(t, "SaveWizardSnapshot",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateScriptAppendsHistoryAndAdvances(t *testing.T) {
	f := newWizardFixture(t)
	p := newProduction()
	p.FetchedNews = []models.NewsItem{{ID: "n1", Title: "A"}, {ID: "n2", Title: "B"}}
	p.SelectedNewsIDs = []string{"n2", "n1"}
	f.expectLoad(p)
	f.allowSnapshots()
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return(scriptJSON, clients.UsageInfo{TotalTokens: 256}, nil).Once()
	f.analyzer.On("AnalyzeScript", mock.Anything, mock.Anything).
		Return(&models.QualityAnalysis{Overall: 8.2}, nil).Once()
	f.repo.On("UpdateScript", mock.Anything, nil, p.ID,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	got, err := f.wizard.GenerateScript(context.Background(), p.ID, []string{"shorter hook"})
	require.NoError(t, err)

	assert.Equal(t, models.StepScriptReview, got.WizardState.CurrentStep)
	require.Len(t, got.ScriptHistory, 1)
	assert.Equal(t, 1, got.ScriptHistory[0].Version)
	assert.Equal(t, []string{"shorter hook"}, got.ScriptHistory[0].Improvements)
	require.NotNil(t, got.ScriptHistory[0].Quality)
	require.Len(t, got.Segments, 2)
	assert.Equal(t, "scene_01", got.Segments[0].SceneKey, "segments follow scene key order")
	assert.Empty(t, got.SegmentStatus, "new script resets segment progress")
}

func TestNavigateRejectionMutatesNothing(t *testing.T) {
	f := newWizardFixture(t)
	p := newProduction()
	f.expectLoad(p)

	before := p.WizardState.CurrentStep
	_, err := f.wizard.Navigate(context.Background(), p.ID, models.StepVideoGenerate)

	assert.ErrorIs(t, err, models.ErrDependencyNotReady)
	assert.Equal(t, before, p.WizardState.CurrentStep)
	f.repo.AssertNotCalled(t, "SaveWizardSnapshot",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNavigateToCompletedStepAllowed(t *testing.T) {
	f := newWizardFixture(t)
	p := newProduction()
	p.WizardState.CurrentStep = models.StepNewsSelect
	p.WizardState.Step(models.StepNewsFetch).Status = models.StepStatusCompleted
	f.expectLoad(p)
	f.allowSnapshots()

	got, err := f.wizard.Navigate(context.Background(), p.ID, models.StepNewsFetch)
	require.NoError(t, err)
	assert.Equal(t, models.StepNewsFetch, got.WizardState.CurrentStep)
}

func TestEditSegmentTextResetsOnlyThatSegment(t *testing.T) {
	f := newWizardFixture(t)
	p := productionWithSegments(2)
	for i := 0; i < 2; i++ {
		p.Segments[i].AudioURL = fmt.Sprintf("http://cdn/segment_%d.mp3", i)
		p.Segments[i].AudioDuration = 3.5
		st := p.SegmentStatus.Status(i)
		st.Audio = models.UnitDone
		st.AudioURL = p.Segments[i].AudioURL
	}
	p.WizardState.Step(models.StepAudioGenerate).Status = models.StepStatusCompleted
	f.expectLoad(p)
	f.allowSnapshots()
	f.repo.On("UpdateSegments", mock.Anything, nil, p.ID, mock.Anything, mock.Anything).Return(nil).Once()

	got, err := f.wizard.EditSegmentText(context.Background(), p.ID, 1, "new wording")
	require.NoError(t, err)

	assert.Equal(t, "new wording", got.Segments[1].Text)
	assert.Empty(t, got.Segments[1].AudioURL)
	assert.Equal(t, models.UnitPending, got.SegmentStatus.Status(1).Audio)
	assert.Equal(t, "http://cdn/segment_0.mp3", got.Segments[0].AudioURL, "other segments keep their audio")
	assert.Equal(t, models.UnitDone, got.SegmentStatus.Status(0).Audio)
	assert.Equal(t, models.StepStatusPending, got.WizardState.Step(models.StepAudioGenerate).Status)
}

func TestStartAudioBatchRunsToCompletionAndAdvances(t *testing.T) {
	f := newWizardFixture(t)
	p := productionWithSegments(2)
	p.WizardState.CurrentStep = models.StepAudioGenerate
	f.expectLoad(p)
	f.allowSnapshots()
	f.speech.On("GenerateSpeech", mock.Anything, mock.Anything, "test-voice").
		Return([]byte("mp3"), 1.0, nil).Twice()
	f.store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/a.mp3")
	f.repo.On("UpdateSegmentStatus", mock.Anything, nil, p.ID, mock.Anything).Return(nil)
	f.repo.On("UpdateSegments", mock.Anything, nil, p.ID, mock.Anything, mock.Anything).Return(nil)

	_, err := f.wizard.StartBatch(context.Background(), p.ID, service.MediaAudio, nil)
	require.NoError(t, err)

	key := fmt.Sprintf("%s:%s", p.ID, models.StepAudioGenerate)
	require.Eventually(t, func() bool {
		return !f.tasks.Running(key)
	}, 2*time.Second, 10*time.Millisecond, "batch task must finish")

	assert.Equal(t, models.StepStatusCompleted, p.WizardState.Step(models.StepAudioGenerate).Status)
	assert.Equal(t, models.StepVideoGenerate, p.WizardState.CurrentStep)

	videoData := p.WizardState.Step(models.StepVideoGenerate).Data
	require.NotNil(t, videoData)
	require.NotNil(t, videoData.VideoGenerate)
	assert.Equal(t, 2, videoData.VideoGenerate.Pending, "video step seeded with the full work set")
}

func TestStartBatchWhileRunningReturnsBusy(t *testing.T) {
	f := newWizardFixture(t)
	p := productionWithSegments(1)
	f.expectLoad(p)
	f.allowSnapshots()
	f.speech.On("GenerateSpeech", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { time.Sleep(300 * time.Millisecond) }).
		Return([]byte("mp3"), 1.0, nil)
	f.store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/a.mp3")
	f.repo.On("UpdateSegmentStatus", mock.Anything, nil, p.ID, mock.Anything).Return(nil)
	f.repo.On("UpdateSegments", mock.Anything, nil, p.ID, mock.Anything, mock.Anything).Return(nil)

	_, err := f.wizard.StartBatch(context.Background(), p.ID, service.MediaAudio, nil)
	require.NoError(t, err)

	_, err = f.wizard.StartBatch(context.Background(), p.ID, service.MediaAudio, nil)
	assert.ErrorIs(t, err, models.ErrBatchInProgress)
}

func TestRenderFinalStoresResultAndAdvances(t *testing.T) {
	f := newWizardFixture(t)
	p := productionWithSegments(1)
	st := p.SegmentStatus.Status(0)
	st.Audio = models.UnitDone
	st.AudioURL = "http://cdn/a.mp3"
	st.Video = models.UnitDone
	st.VideoURL = "http://cdn/v.mp4"
	f.expectLoad(p)
	f.allowSnapshots()
	f.renderer.On("RenderFinal", mock.Anything, p).
		Return("http://cdn/final.mp4", "http://cdn/poster.jpg", nil).Once()
	f.repo.On("SetFinalVideo", mock.Anything, nil, p.ID, "http://cdn/final.mp4", "http://cdn/poster.jpg").
		Return(nil).Once()

	got, err := f.wizard.RenderFinal(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, "http://cdn/final.mp4", got.FinalVideoURL)
	assert.Equal(t, models.StepPublish, got.WizardState.CurrentStep)
}

func TestPublishRequiresConfiguredUploader(t *testing.T) {
	f := newWizardFixture(t)
	p := newProduction()
	p.FinalVideoURL = "http://cdn/final.mp4"
	f.expectLoad(p)
	f.youtube.On("Configured").Return(false).Once()

	_, err := f.wizard.Publish(context.Background(), p.ID)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestPublishRecordsVideoIDAndCompletesWizard(t *testing.T) {
	f := newWizardFixture(t)
	p := newProduction()
	p.FinalVideoURL = "http://cdn/final.mp4"
	p.ViralMetadata = &models.ViralMetadata{Title: "Tech in 60s"}
	f.expectLoad(p)
	f.allowSnapshots()
	f.youtube.On("Configured").Return(true).Once()
	f.youtube.On("Upload", mock.Anything, "http://cdn/final.mp4", p.ViralMetadata).
		Return("yt-abc123", nil).Once()
	f.repo.On("SetYouTubeVideoID", mock.Anything, nil, p.ID, "yt-abc123").Return(nil).Once()

	got, err := f.wizard.Publish(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, "yt-abc123", got.YouTubeVideoID)
	assert.Equal(t, models.StepDone, got.WizardState.CurrentStep)
	assert.Equal(t, models.StepStatusCompleted, got.WizardState.Step(models.StepDone).Status)
}

func TestRestoreScriptVersionAppendsNewHistoryEntry(t *testing.T) {
	f := newWizardFixture(t)
	p := newProduction()
	oldScript := models.Script{"scene_01": {Speaker: "anchor_a", Text: "original take"}}
	p.Script = models.Script{"scene_01": {Speaker: "anchor_a", Text: "newer take"}}
	p.ScriptHistory = []models.ScriptHistoryItem{
		{Version: 1, Script: oldScript},
		{Version: 2, Script: p.Script},
	}
	f.expectLoad(p)
	f.allowSnapshots()
	f.repo.On("UpdateScript", mock.Anything, nil, p.ID,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	got, err := f.wizard.RestoreScriptVersion(context.Background(), p.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, "original take", got.Script["scene_01"].Text)
	require.Len(t, got.ScriptHistory, 3, "restore appends, never rewrites history")
	assert.Equal(t, 3, got.ScriptHistory[2].Version)
	assert.Equal(t, models.StepScriptReview, got.WizardState.CurrentStep)
}
