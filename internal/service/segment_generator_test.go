package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"newsroom-server/internal/models"
	"newsroom-server/internal/service"
	"newsroom-server/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type generatorFixture struct {
	repo      *mocks.MockProductionRepository
	store     *mocks.MockObjectStore
	speech    *mocks.MockSpeechGenerator
	video     *mocks.MockVideoGenerator
	publisher *mocks.MockProgressPublisher
	gen       *service.SegmentGenerator
}

func newGeneratorFixture(t *testing.T, audioConcurrency, videoConcurrency int) *generatorFixture {
	f := &generatorFixture{
		repo:      mocks.NewMockProductionRepository(t),
		store:     mocks.NewMockObjectStore(t),
		speech:    mocks.NewMockSpeechGenerator(t),
		video:     mocks.NewMockVideoGenerator(t),
		publisher: mocks.NewMockProgressPublisher(t),
	}
	f.gen = service.NewSegmentGenerator(
		f.repo, nil, f.store, f.speech, f.video, f.publisher,
		"test-voice", audioConcurrency, videoConcurrency, zap.NewNop())
	return f
}

func productionWithSegments(n int) *models.Production {
	p := newProduction()
	for i := 0; i < n; i++ {
		p.Segments = append(p.Segments, models.Segment{
			Speaker:  "anchor_a",
			Text:     "segment text",
			SceneKey: "scene",
		})
	}
	return p
}

func TestAudioBatchGeneratesOnlyPendingUnits(t *testing.T) {
	f := newGeneratorFixture(t, 2, 4)
	p := productionWithSegments(3)
	p.SegmentStatus.Status(0).Audio = models.UnitDone
	p.SegmentStatus.Status(0).AudioURL = "http://cdn/segment_0.mp3"

	f.speech.On("GenerateSpeech", mock.Anything, "segment text", "test-voice").
		Return([]byte("mp3"), 2.5, nil).Twice()
	f.store.On("Upload", mock.Anything, mock.Anything, []byte("mp3"), "audio/mpeg", true).
		Return(nil).Twice()
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/generated.mp3")
	f.repo.On("UpdateSegmentStatus", mock.Anything, nil, p.ID, mock.Anything).Return(nil).Once()
	f.repo.On("UpdateSegments", mock.Anything, nil, p.ID, mock.Anything, mock.Anything).Return(nil).Once()
	f.publisher.On("PublishProgress", mock.Anything, mock.Anything).Return(nil)

	result, err := f.gen.Run(context.Background(), p, service.MediaAudio, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Done)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.Skipped)
	for i := 0; i < 3; i++ {
		st := p.SegmentStatus.Status(i)
		assert.Equal(t, models.UnitDone, st.Audio, "segment %d", i)
		assert.NotEmpty(t, st.AudioURL, "segment %d done implies a URL", i)
	}
	f.repo.AssertExpectations(t)
	f.speech.AssertExpectations(t)
}

func TestAudioBatchHonorsConcurrencyCap(t *testing.T) {
	const limit = 2
	f := newGeneratorFixture(t, limit, 4)
	p := productionWithSegments(5)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	f.speech.On("GenerateSpeech", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
		}).
		Return([]byte("mp3"), 1.0, nil)
	f.store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/a.mp3")
	f.repo.On("UpdateSegmentStatus", mock.Anything, nil, p.ID, mock.Anything).Return(nil)
	f.repo.On("UpdateSegments", mock.Anything, nil, p.ID, mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("PublishProgress", mock.Anything, mock.Anything).Return(nil)

	result, err := f.gen.Run(context.Background(), p, service.MediaAudio, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Done)
	assert.LessOrEqual(t, peak, limit, "no more than %d audio units may run at once", limit)
	assert.Positive(t, peak)
}

func TestVideoBatchRejectsSegmentsWithoutAudio(t *testing.T) {
	f := newGeneratorFixture(t, 2, 4)
	p := productionWithSegments(3)
	p.SegmentStatus.Status(0).Audio = models.UnitDone
	p.SegmentStatus.Status(0).AudioURL = "http://cdn/segment_0.mp3"

	_, err := f.gen.Run(context.Background(), p, service.MediaVideo, nil)

	var notReady *models.DependencyNotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, models.StepVideoGenerate, notReady.Step)
	assert.Equal(t, []int{1, 2}, notReady.Missing)
	// Rejected batches mutate nothing.
	f.repo.AssertNotCalled(t, "UpdateSegmentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.video.AssertNotCalled(t, "GenerateSegmentVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, models.UnitPending, p.SegmentStatus.Status(1).Video)
}

func TestBatchShortCircuitsWhenAllDone(t *testing.T) {
	f := newGeneratorFixture(t, 2, 4)
	p := productionWithSegments(2)
	for i := 0; i < 2; i++ {
		st := p.SegmentStatus.Status(i)
		st.Audio = models.UnitDone
		st.AudioURL = "http://cdn/a.mp3"
	}

	result, err := f.gen.Run(context.Background(), p, service.MediaAudio, nil)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, 2, result.Done)
	f.speech.AssertNotCalled(t, "GenerateSpeech", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "UpdateSegmentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSingleIndexRetryClearsOldResultAndTouchesNothingElse(t *testing.T) {
	f := newGeneratorFixture(t, 2, 4)
	p := productionWithSegments(2)
	p.Segments[0].AudioURL = "http://cdn/segment_0.mp3"
	p.Segments[1].AudioURL = "http://cdn/segment_1_old.mp3"
	for i := 0; i < 2; i++ {
		st := p.SegmentStatus.Status(i)
		st.Audio = models.UnitDone
		st.AudioURL = p.Segments[i].AudioURL
	}

	f.speech.On("GenerateSpeech", mock.Anything, "segment text", "test-voice").
		Return([]byte("mp3"), 1.0, nil).Once()
	f.store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/segment_1_new.mp3")
	f.repo.On("UpdateSegmentStatus", mock.Anything, nil, p.ID, mock.Anything).Return(nil).Once()
	f.repo.On("UpdateSegments", mock.Anything, nil, p.ID, mock.Anything, mock.Anything).Return(nil).Once()
	f.publisher.On("PublishProgress", mock.Anything, mock.Anything).Return(nil)

	retryIndex := 1
	result, err := f.gen.Run(context.Background(), p, service.MediaAudio, &retryIndex)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Done)
	assert.Equal(t, "http://cdn/segment_0.mp3", p.SegmentStatus.Status(0).AudioURL, "other segments untouched")
	assert.Equal(t, "http://cdn/segment_1_new.mp3", p.SegmentStatus.Status(1).AudioURL)
	f.speech.AssertExpectations(t)
}

func TestFailedUnitDoesNotAbortBatch(t *testing.T) {
	f := newGeneratorFixture(t, 1, 4)
	p := productionWithSegments(2)
	p.Segments[1].Text = "broken segment"

	f.speech.On("GenerateSpeech", mock.Anything, "segment text", "test-voice").
		Return([]byte("mp3"), 1.0, nil).Once()
	f.speech.On("GenerateSpeech", mock.Anything, "broken segment", "test-voice").
		Return(nil, 0.0, &models.UpstreamError{Provider: "elevenlabs", Status: 500, Body: "boom"}).Once()
	f.store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/a.mp3")
	f.repo.On("UpdateSegmentStatus", mock.Anything, nil, p.ID, mock.Anything).Return(nil).Once()
	f.repo.On("UpdateSegments", mock.Anything, nil, p.ID, mock.Anything, mock.Anything).Return(nil).Once()
	f.publisher.On("PublishProgress", mock.Anything, mock.Anything).Return(nil)

	result, err := f.gen.Run(context.Background(), p, service.MediaAudio, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Done)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Complete())

	failed := p.SegmentStatus.Status(1)
	assert.Equal(t, models.UnitFailed, failed.Audio)
	assert.Empty(t, failed.AudioURL, "failed units never carry a URL")
	assert.NotEmpty(t, failed.Error, "failed implies an error message")
}

func TestVideoBatchRecordsProvider(t *testing.T) {
	f := newGeneratorFixture(t, 2, 4)
	p := productionWithSegments(1)
	st := p.SegmentStatus.Status(0)
	st.Audio = models.UnitDone
	st.AudioURL = "http://cdn/segment_0.mp3"

	f.video.On("GenerateSegmentVideo", mock.Anything, mock.Anything, "", "http://cdn/segment_0.mp3").
		Return("http://videos/0.mp4", service.VideoProviderGemini, nil).Once()
	f.repo.On("UpdateSegmentStatus", mock.Anything, nil, p.ID, mock.Anything).Return(nil).Once()
	f.repo.On("UpdateSegments", mock.Anything, nil, p.ID, mock.Anything, mock.Anything).Return(nil).Once()
	f.publisher.On("PublishProgress", mock.Anything, mock.Anything).Return(nil)

	result, err := f.gen.Run(context.Background(), p, service.MediaVideo, nil)
	require.NoError(t, err)

	assert.True(t, result.Complete())
	assert.Equal(t, models.UnitDone, st.Video)
	assert.Equal(t, "http://videos/0.mp4", st.VideoURL)
	assert.Equal(t, service.VideoProviderGemini, st.VideoProvider)
	assert.Equal(t, "http://videos/0.mp4", p.Segments[0].VideoURL)
}
