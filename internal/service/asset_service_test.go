package service_test

import (
	"context"
	"testing"

	"newsroom-server/internal/interfaces"
	"newsroom-server/internal/models"
	"newsroom-server/internal/service"
	"newsroom-server/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeURLCache is a stateful in-memory cache so tests can observe the
// cache-fill behavior across invocations.
type fakeURLCache struct {
	entries map[string]string
}

var _ interfaces.URLCache = (*fakeURLCache)(nil)

func newFakeURLCache() *fakeURLCache {
	return &fakeURLCache{entries: make(map[string]string)}
}

func (c *fakeURLCache) Get(_ context.Context, key string) (string, bool) {
	url, ok := c.entries[key]
	return url, ok
}

func (c *fakeURLCache) Set(_ context.Context, key, url string) { c.entries[key] = url }
func (c *fakeURLCache) Delete(_ context.Context, key string)   { delete(c.entries, key) }

type assetFixture struct {
	store *mocks.MockObjectStore
	cache *fakeURLCache
	gen   *mocks.MockAudioAssetGenerator
	svc   *service.AssetService
}

func newAssetFixture(t *testing.T) *assetFixture {
	f := &assetFixture{
		store: mocks.NewMockObjectStore(t),
		cache: newFakeURLCache(),
		gen:   mocks.NewMockAudioAssetGenerator(t),
	}
	f.svc = service.NewAssetService(f.store, f.cache, f.gen, zap.NewNop())
	return f
}

func TestEnsureAssetsGeneratesOnlyMissingFiles(t *testing.T) {
	f := newAssetFixture(t)
	f.store.On("List", mock.Anything, "music").
		Return([]interfaces.ObjectInfo{{Name: "podcast.mp3"}}, nil).Once()
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/asset.mp3")
	f.gen.On("Configured").Return(true)
	f.gen.On("GenerateMusic", mock.Anything, mock.Anything, 60000).
		Return([]byte("mp3"), nil).Twice()
	f.store.On("Upload", mock.Anything, mock.Anything, []byte("mp3"), "audio/mpeg", true).
		Return(nil).Twice()

	report := f.svc.EnsureAssets(context.Background(), service.AssetRequest{
		Music:      true,
		MusicBatch: service.MusicBatchFirstHalf,
	})

	assert.True(t, report.Success)
	assert.Equal(t, 1, report.Summary.FromCache)
	assert.Equal(t, 2, report.Summary.Generated)
	assert.Equal(t, "1 from cache, 2 generated, 0 failed", report.Message)
	assert.Len(t, report.Results.Music, 3)
	assert.Contains(t, report.Results.Music, "podcast")
	f.gen.AssertExpectations(t)
}

func TestEnsureAssetsReportsMissingCredentialInBand(t *testing.T) {
	f := newAssetFixture(t)
	f.store.On("List", mock.Anything, "music").
		Return([]interfaces.ObjectInfo{{Name: "podcast.mp3"}}, nil).Once()
	f.store.On("PublicURL", "music/podcast.mp3").Return("http://cdn/music/podcast.mp3").Once()
	f.gen.On("Configured").Return(false)

	report := f.svc.EnsureAssets(context.Background(), service.AssetRequest{
		Music:      true,
		MusicBatch: service.MusicBatchFirstHalf,
	})

	assert.False(t, report.Success)
	assert.Equal(t, "http://cdn/music/podcast.mp3", report.Results.Music["podcast"])
	require.Len(t, report.Results.Errors, 2, "the two uncached styles fail in-band")
	assert.Equal(t, "energetic.mp3", report.Results.Errors[0].File)
	assert.Contains(t, report.Results.Errors[0].Error, "ELEVENLABS_API_KEY not configured")
	f.gen.AssertNotCalled(t, "GenerateMusic", mock.Anything, mock.Anything, mock.Anything)
}

func TestSecondInvocationServedFromURLCache(t *testing.T) {
	f := newAssetFixture(t)
	listing := []interfaces.ObjectInfo{{Name: "podcast.mp3"}, {Name: "energetic.mp3"}, {Name: "dramatic.mp3"}}
	f.store.On("List", mock.Anything, "music").Return(listing, nil).Twice()
	// PublicURL resolution only happens on the cache-filling first pass.
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/asset.mp3").Times(3)

	req := service.AssetRequest{Music: true, MusicBatch: service.MusicBatchFirstHalf}
	first := f.svc.EnsureAssets(context.Background(), req)
	second := f.svc.EnsureAssets(context.Background(), req)

	assert.Equal(t, 3, first.Summary.FromCache)
	assert.Equal(t, 3, second.Summary.FromCache)
	assert.Equal(t, 0, second.Summary.Generated)
	f.store.AssertExpectations(t)
	f.gen.AssertNotCalled(t, "Configured")
}

func TestGenerateOnceThenServeFromCache(t *testing.T) {
	f := newAssetFixture(t)
	f.store.On("List", mock.Anything, "music").Return(nil, nil).Twice()
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/asset.mp3")
	f.gen.On("Configured").Return(true)
	f.gen.On("GenerateMusic", mock.Anything, mock.Anything, 60000).
		Return([]byte("mp3"), nil).Times(3)
	f.store.On("Upload", mock.Anything, mock.Anything, []byte("mp3"), "audio/mpeg", true).
		Return(nil).Times(3)

	req := service.AssetRequest{Music: true, MusicBatch: service.MusicBatchSecondHalf}
	first := f.svc.EnsureAssets(context.Background(), req)
	second := f.svc.EnsureAssets(context.Background(), req)

	assert.Equal(t, 3, first.Summary.Generated)
	assert.Equal(t, 0, second.Summary.Generated, "second invocation never regenerates")
	assert.Equal(t, 3, second.Summary.FromCache)
	f.gen.AssertExpectations(t)
	f.store.AssertExpectations(t)
}

func TestRegenerateForcesGenerationForNamedFiles(t *testing.T) {
	f := newAssetFixture(t)
	listing := []interfaces.ObjectInfo{{Name: "podcast.mp3"}, {Name: "energetic.mp3"}, {Name: "dramatic.mp3"}}
	f.store.On("List", mock.Anything, "music").Return(listing, nil).Once()
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/asset.mp3")
	f.gen.On("Configured").Return(true)
	f.gen.On("GenerateMusic", mock.Anything, mock.Anything, 60000).
		Return([]byte("fresh"), nil).Once()
	f.store.On("Upload", mock.Anything, "music/podcast.mp3", []byte("fresh"), "audio/mpeg", true).
		Return(nil).Once()

	report := f.svc.EnsureAssets(context.Background(), service.AssetRequest{
		Music:      true,
		MusicBatch: service.MusicBatchFirstHalf,
		Regenerate: []string{"podcast.mp3"},
	})

	assert.True(t, report.Success)
	assert.Equal(t, 1, report.Summary.Generated)
	assert.Equal(t, 2, report.Summary.FromCache)
	f.store.AssertExpectations(t)
}

func TestEffectBatchesPartitionTheCatalog(t *testing.T) {
	f := newAssetFixture(t)
	f.store.On("List", mock.Anything, "sound-effects").Return(nil, nil)
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/fx.mp3")
	f.gen.On("Configured").Return(true)
	f.gen.On("GenerateSoundEffect", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte("fx"), nil)
	f.store.On("Upload", mock.Anything, mock.Anything, mock.Anything, "audio/mpeg", true).Return(nil)

	first := f.svc.EnsureAssets(context.Background(), service.AssetRequest{
		SoundEffects: true,
		Batch:        service.BatchTransitionsEmphasis,
	})
	second := f.svc.EnsureAssets(context.Background(), service.AssetRequest{
		SoundEffects: true,
		Batch:        service.BatchNotificationsAmbient,
	})

	assert.Contains(t, first.Results.SoundEffects, "transition-whoosh")
	assert.Contains(t, first.Results.SoundEffects, "emphasis-hit")
	assert.NotContains(t, first.Results.SoundEffects, "notification-ding")
	assert.Contains(t, second.Results.SoundEffects, "notification-ding")
	assert.Contains(t, second.Results.SoundEffects, "ambient-newsroom")
	assert.NotContains(t, second.Results.SoundEffects, "transition-whoosh")

	total := len(first.Results.SoundEffects) + len(second.Results.SoundEffects)
	assert.Equal(t, 7, total, "the two batches cover the whole catalog exactly once")
}

func TestEnsureAssetsSurvivesListingFailure(t *testing.T) {
	f := newAssetFixture(t)
	f.store.On("List", mock.Anything, "music").
		Return(nil, &models.UpstreamError{Provider: "supabase", Status: 500, Body: "boom"}).Once()
	f.store.On("PublicURL", mock.Anything).Return("http://cdn/asset.mp3")
	f.gen.On("Configured").Return(true)
	f.gen.On("GenerateMusic", mock.Anything, mock.Anything, 60000).Return([]byte("mp3"), nil).Times(3)
	f.store.On("Upload", mock.Anything, mock.Anything, mock.Anything, "audio/mpeg", true).Return(nil).Times(3)

	report := f.svc.EnsureAssets(context.Background(), service.AssetRequest{
		Music:      true,
		MusicBatch: service.MusicBatchFirstHalf,
	})

	assert.True(t, report.Success, "a listing failure means regenerate, not fail")
	assert.Equal(t, 3, report.Summary.Generated)
}

func TestUploadVerbatimMirrorsFilesAndReportsFailures(t *testing.T) {
	f := newAssetFixture(t)
	f.store.On("Download", mock.Anything, "http://ext/theme.mp3").
		Return([]byte("music"), "audio/mpeg", nil).Once()
	f.store.On("Download", mock.Anything, "http://ext/missing.mp3").
		Return(nil, "", &models.UpstreamError{Provider: "http", Status: 404, Body: "not found"}).Once()
	f.store.On("Upload", mock.Anything, "music/theme.mp3", []byte("music"), "audio/mpeg", true).
		Return(nil).Once()
	f.store.On("PublicURL", "music/theme.mp3").Return("http://cdn/music/theme.mp3").Once()

	report := f.svc.UploadVerbatim(context.Background(), []service.VerbatimFile{
		{Name: "theme.mp3", URL: "http://ext/theme.mp3", Type: "music"},
		{Name: "missing.mp3", URL: "http://ext/missing.mp3", Type: "sound-effect"},
	})

	assert.False(t, report.Success)
	assert.Equal(t, "http://cdn/music/theme.mp3", report.Results.Music["theme"])
	assert.Equal(t, 1, report.Summary.MusicUploaded)
	require.Len(t, report.Results.Errors, 1)
	assert.Equal(t, "missing.mp3", report.Results.Errors[0].File)
	assert.Equal(t, "1 uploaded, 1 failed", report.Message)
}
