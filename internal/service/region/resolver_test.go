package region

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/backend/backendtest"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/reqcache"
)

func region(id, name string, codes ...string) domain.Region {
	r := domain.Region{ID: id, Name: name}
	for _, code := range codes {
		r.Countries = append(r.Countries, domain.Country{ISO2: code})
	}
	return r
}

type strategyRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *strategyRecorder) RecordRegionResolved(strategy string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, strategy)
}

func TestResolve_ExactCountry(t *testing.T) {
	fake := backendtest.Regions(region("r1", "Zimbabwe", "zw"), region("r2", "Ghana", "gh"))
	resolver := NewResolver(fake)

	got, ok := resolver.Resolve(context.Background(), "zw")
	require.True(t, ok)
	require.Equal(t, "r1", got.ID)

	got, ok = resolver.Resolve(context.Background(), " GH ")
	require.True(t, ok)
	require.Equal(t, "r2", got.ID)
}

func TestResolve_UnknownCountryFallsBackToFirstRegion(t *testing.T) {
	fake := backendtest.Regions(region("r1", "Southern Africa", "zw"), region("r2", "West Africa", "gh"))
	recorder := &strategyRecorder{}
	resolver := NewResolver(fake, WithRecorder(recorder), WithStrategies(DefaultStrategies("zimb", "ghana")...))

	got, ok := resolver.Resolve(context.Background(), "fr")
	require.True(t, ok)
	require.Equal(t, "r1", got.ID)
	require.Equal(t, []string{"first_region"}, recorder.names)
}

func TestResolve_NamedFallbacksInOrder(t *testing.T) {
	fake := backendtest.Regions(
		region("r1", "Europe", "de"),
		region("r2", "Ghana", "gh"),
		region("r3", "ZIMB", "zw"),
	)
	resolver := NewResolver(fake, WithStrategies(DefaultStrategies("zimb", "ghana")...))

	got, ok := resolver.Resolve(context.Background(), "fr")
	require.True(t, ok)
	require.Equal(t, "r3", got.ID)

	resolver = NewResolver(fake, WithStrategies(DefaultStrategies("ghana", "zimb")...))
	got, ok = resolver.Resolve(context.Background(), "")
	require.True(t, ok)
	require.Equal(t, "r2", got.ID)
}

func TestResolve_EmptyListOrFailure(t *testing.T) {
	resolver := NewResolver(backendtest.Regions())
	_, ok := resolver.Resolve(context.Background(), "zw")
	require.False(t, ok)

	failing := &backendtest.Fake{
		ListRegionsFn: func(context.Context) ([]domain.Region, error) {
			return nil, errors.New("connection refused")
		},
	}
	recorder := &strategyRecorder{}
	resolver = NewResolver(failing, WithRecorder(recorder))
	_, ok = resolver.Resolve(context.Background(), "zw")
	require.False(t, ok)
	require.Equal(t, []string{"none"}, recorder.names)
}

func TestResolve_DuplicateCountryLastWriteWins(t *testing.T) {
	fake := backendtest.Regions(region("r1", "A", "zw"), region("r2", "B", "zw"))
	resolver := NewResolver(fake)

	got, ok := resolver.Resolve(context.Background(), "zw")
	require.True(t, ok)
	require.Equal(t, "r2", got.ID)

	cached, ok := resolver.lookup("ZW")
	require.True(t, ok)
	require.Equal(t, "r2", cached.ID)
}

func TestResolve_MapRebuiltFromLatestList(t *testing.T) {
	regions := []domain.Region{region("r1", "A", "zw")}
	fake := &backendtest.Fake{
		ListRegionsFn: func(context.Context) ([]domain.Region, error) { return regions, nil },
	}
	resolver := NewResolver(fake)

	_, _ = resolver.Resolve(context.Background(), "zw")
	_, ok := resolver.lookup("zw")
	require.True(t, ok)

	regions = []domain.Region{region("r2", "B", "gh")}
	_, _ = resolver.Resolve(context.Background(), "gh")
	_, ok = resolver.lookup("zw")
	require.False(t, ok)
	got, ok := resolver.lookup("gh")
	require.True(t, ok)
	require.Equal(t, "r2", got.ID)
}

func TestResolve_MemoizedWithinRequest(t *testing.T) {
	fake := backendtest.Regions(region("r1", "A", "zw"))
	resolver := NewResolver(fake)
	ctx := reqcache.NewContext(context.Background(), reqcache.New(nil))

	for i := 0; i < 3; i++ {
		_, ok := resolver.Resolve(ctx, "zw")
		require.True(t, ok)
	}
	require.Equal(t, 1, fake.Calls("ListRegions"))

	reqcache.Invalidate(ctx, reqcache.TagRegions)
	_, _ = resolver.Resolve(ctx, "zw")
	require.Equal(t, 2, fake.Calls("ListRegions"))
}

func TestResolve_ConcurrentCallers(t *testing.T) {
	fake := backendtest.Regions(region("r1", "A", "zw"), region("r2", "B", "gh"))
	resolver := NewResolver(fake)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := "zw"
			if i%2 == 1 {
				code = "gh"
			}
			_, ok := resolver.Resolve(context.Background(), code)
			require.True(t, ok)
			_, _ = resolver.lookup(code)
		}(i)
	}
	wg.Wait()
}

func TestRetrieveRegion_TranslatesErrors(t *testing.T) {
	fake := &backendtest.Fake{
		RetrieveRegionFn: func(context.Context, string) (domain.Region, error) {
			return domain.Region{}, &domain.BackendError{Status: 404, Message: "region not found"}
		},
	}
	resolver := NewResolver(fake)

	_, err := resolver.RetrieveRegion(context.Background(), "r9")
	be, ok := domain.AsBackendError(err)
	require.True(t, ok)
	require.Equal(t, "Region not found.", be.Message)
}

func TestDefaultStrategies(t *testing.T) {
	chain := DefaultStrategies("zimb", " ", "ghana")
	require.Len(t, chain, 4)
	require.Equal(t, "exact_country", chain[0].Name())
	require.Equal(t, NamedRegion{RegionName: "zimb"}, chain[1])
	require.Equal(t, NamedRegion{RegionName: "ghana"}, chain[2])
	require.Equal(t, "first_region", chain[3].Name())
}
