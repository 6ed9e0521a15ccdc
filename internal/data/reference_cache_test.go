package data

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/mocks"
)

const conductor50Key = ReferenceCacheKeyPrefix + "conductor:50"

func TestNewCachedReferenceReader_RequiresSource(t *testing.T) {
	_, err := NewCachedReferenceReader(CachedReferenceReaderOptions{})
	require.Error(t, err)
}

func TestCachedReferenceReader_PassThroughWithoutCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockReferenceReader(ctrl)
	want := &model.ConductorSpec{CSA: 50}
	source.EXPECT().GetConductor(gomock.Any(), 50.0).Return(want, nil).Times(2)

	reader, err := NewCachedReferenceReader(CachedReferenceReaderOptions{Source: source})
	require.NoError(t, err)

	for range 2 {
		got, err := reader.GetConductor(context.Background(), 50)
		require.NoError(t, err)
		assert.Same(t, want, got)
	}
	require.NoError(t, reader.Invalidate(context.Background()))
}

func TestCachedReferenceReader_ReadThrough(t *testing.T) {
	ctx := context.Background()
	spec := &model.ConductorSpec{CSA: 50, MaxResistanceCuPlain: model.Ptr(0.387)}
	encoded, err := json.Marshal(spec)
	require.NoError(t, err)

	tests := []struct {
		name    string
		setup   func(source *mocks.MockReferenceReader, cache *mocks.MockCacheRepository)
		want    *model.ConductorSpec
		wantErr error
	}{
		{
			name: "miss loads and stores",
			setup: func(source *mocks.MockReferenceReader, cache *mocks.MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), conductor50Key).Return(nil, nil)
				source.EXPECT().GetConductor(gomock.Any(), 50.0).Return(spec, nil)
				cache.EXPECT().Set(gomock.Any(), conductor50Key, encoded, time.Minute).Return(nil)
			},
			want: spec,
		},
		{
			name: "hit skips the source",
			setup: func(_ *mocks.MockReferenceReader, cache *mocks.MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), conductor50Key).Return(encoded, nil)
			},
			want: spec,
		},
		{
			name: "not found is cached as a miss marker",
			setup: func(source *mocks.MockReferenceReader, cache *mocks.MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), conductor50Key).Return(nil, nil)
				source.EXPECT().GetConductor(gomock.Any(), 50.0).Return(nil, model.ErrReferenceNotFound)
				cache.EXPECT().Set(gomock.Any(), conductor50Key, missMarker, time.Minute).Return(nil)
			},
			wantErr: model.ErrReferenceNotFound,
		},
		{
			name: "cached miss marker",
			setup: func(_ *mocks.MockReferenceReader, cache *mocks.MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), conductor50Key).Return(missMarker, nil)
			},
			wantErr: model.ErrReferenceNotFound,
		},
		{
			name: "cache read failure degrades to source",
			setup: func(source *mocks.MockReferenceReader, cache *mocks.MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), conductor50Key).Return(nil, errors.New("connection refused"))
				source.EXPECT().GetConductor(gomock.Any(), 50.0).Return(spec, nil)
				cache.EXPECT().Set(gomock.Any(), conductor50Key, encoded, time.Minute).Return(errors.New("connection refused"))
			},
			want: spec,
		},
		{
			name: "corrupt entry is reloaded",
			setup: func(source *mocks.MockReferenceReader, cache *mocks.MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), conductor50Key).Return([]byte("{"), nil)
				source.EXPECT().GetConductor(gomock.Any(), 50.0).Return(spec, nil)
				cache.EXPECT().Set(gomock.Any(), conductor50Key, encoded, time.Minute).Return(nil)
			},
			want: spec,
		},
		{
			name: "source errors are not cached",
			setup: func(source *mocks.MockReferenceReader, cache *mocks.MockCacheRepository) {
				cache.EXPECT().Get(gomock.Any(), conductor50Key).Return(nil, nil)
				source.EXPECT().GetConductor(gomock.Any(), 50.0).Return(nil, errors.New("db down"))
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			source := mocks.NewMockReferenceReader(ctrl)
			cache := mocks.NewMockCacheRepository(ctrl)
			tt.setup(source, cache)

			reader, err := NewCachedReferenceReader(CachedReferenceReaderOptions{
				Source: source,
				Cache:  cache,
				TTL:    time.Minute,
			})
			require.NoError(t, err)

			got, err := reader.GetConductor(ctx, 50)
			if tt.wantErr != nil {
				require.ErrorContains(t, err, tt.wantErr.Error())
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCachedReferenceReader_InsulationKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockReferenceReader(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)

	key := ReferenceCacheKeyPrefix + "insulation:2.5"
	spec := &model.InsulationSpec{CSA: 2.5, Material: "PVC", Nominal: 0.8, Minimum: 0.62, Reference: "IEC 60502-1 Table 5"}
	cache.EXPECT().Get(gomock.Any(), key).Return(nil, nil)
	source.EXPECT().GetInsulation(gomock.Any(), 2.5).Return(spec, nil)
	cache.EXPECT().Set(gomock.Any(), key, gomock.Any(), time.Minute).Return(nil)

	reader, err := NewCachedReferenceReader(CachedReferenceReaderOptions{Source: source, Cache: cache, TTL: time.Minute})
	require.NoError(t, err)

	got, err := reader.GetInsulation(context.Background(), 2.5)
	require.NoError(t, err)
	assert.Equal(t, spec, got)
}

func TestCachedReferenceReader_ConcurrentMissesShareOneLoad(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockReferenceReader(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)

	release := make(chan struct{})
	cache.EXPECT().Get(gomock.Any(), conductor50Key).Return(nil, nil).AnyTimes()
	cache.EXPECT().Set(gomock.Any(), conductor50Key, gomock.Any(), time.Minute).Return(nil).AnyTimes()
	source.EXPECT().GetConductor(gomock.Any(), 50.0).DoAndReturn(
		func(context.Context, float64) (*model.ConductorSpec, error) {
			<-release
			return &model.ConductorSpec{CSA: 50}, nil
		},
	).MinTimes(1).MaxTimes(2)

	reader, err := NewCachedReferenceReader(CachedReferenceReaderOptions{Source: source, Cache: cache, TTL: time.Minute})
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reader.GetConductor(context.Background(), 50)
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestCachedReferenceReader_Invalidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockReferenceReader(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)

	reader, err := NewCachedReferenceReader(CachedReferenceReaderOptions{Source: source, Cache: cache})
	require.NoError(t, err)

	cache.EXPECT().DeletePrefix(gomock.Any(), ReferenceCacheKeyPrefix).Return(int64(3), nil)
	require.NoError(t, reader.Invalidate(context.Background()))

	cache.EXPECT().DeletePrefix(gomock.Any(), ReferenceCacheKeyPrefix).Return(int64(0), errors.New("timeout"))
	require.ErrorContains(t, reader.Invalidate(context.Background()), "invalidate reference cache")
}
