package analytics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingService counts metadata fetches so cache behavior is observable.
type countingService struct {
	Service
	metadataCalls atomic.Int64
}

func (c *countingService) GetMetadata(ctx context.Context, propertyID string) (*Metadata, error) {
	c.metadataCalls.Add(1)
	return c.Service.GetMetadata(ctx, propertyID)
}

// failingService errors on every call.
type failingService struct{}

func (failingService) RunReport(ctx context.Context, req ReportRequest) (*ReportResponse, error) {
	return nil, errors.New("backend down")
}

func (failingService) GetMetadata(ctx context.Context, propertyID string) (*Metadata, error) {
	return nil, errors.New("backend down")
}

func TestResolverCachesMetadata(t *testing.T) {
	backend := &countingService{Service: NewFakeService()}
	r, err := NewResolver(backend, 8, nil)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := r.Metadata(ctx, "properties/123")
	require.NoError(t, err)
	second, err := r.Metadata(ctx, "properties/123")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), backend.metadataCalls.Load())

	_, err = r.Metadata(ctx, "properties/456")
	require.NoError(t, err)
	assert.Equal(t, int64(2), backend.metadataCalls.Load())
}

func TestResolverInvalidateDropsEntry(t *testing.T) {
	backend := &countingService{Service: NewFakeService()}
	r, err := NewResolver(backend, 8, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = r.Metadata(ctx, "properties/123")
	require.NoError(t, err)

	r.Invalidate("properties/123")

	_, err = r.Metadata(ctx, "properties/123")
	require.NoError(t, err)
	assert.Equal(t, int64(2), backend.metadataCalls.Load())
}

func TestResolveDimensionAgainstLiveMetadata(t *testing.T) {
	r, err := NewResolver(NewFakeService(), 8, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "date", r.ResolveDimension(ctx, "properties/123", "date"))
	assert.Equal(t, "customEvent:donation_name",
		r.ResolveDimension(ctx, "properties/123", "donation_name"))
	assert.Equal(t, "customEvent:donation_name",
		r.ResolveDimension(ctx, "properties/123", "customEvent:donation_name"))
}

func TestResolveDimensionOffline(t *testing.T) {
	r, err := NewResolver(failingService{}, 8, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "date", r.ResolveDimension(ctx, "properties/123", "date"))
	assert.Equal(t, "customEvent:donation_name",
		r.ResolveDimension(ctx, "properties/123", "donation_name"))
}

func TestResolveMetric(t *testing.T) {
	r, err := NewResolver(NewFakeService(), 8, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "purchaseRevenue", r.ResolveMetric(ctx, "properties/123", "purchaseRevenue"))
	assert.Equal(t, "fancyMetric", r.ResolveMetric(ctx, "properties/123", "fancyMetric"))
}

func TestResolveAgainst(t *testing.T) {
	known := []string{"date", "eventName", "customEvent:donation_name", "customUser:member_grade"}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"exact", "date", "date"},
		{"event prefix", "donation_name", "customEvent:donation_name"},
		{"user prefix", "member_grade", "customUser:member_grade"},
		{"already prefixed", "customEvent:donation_name", "customEvent:donation_name"},
		{"camel case passthrough", "deviceCategory", "deviceCategory"},
		{"unknown param falls back to event scope", "button_name", "customEvent:button_name"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveAgainst(tc.in, known))
		})
	}
}

func TestLooksLikeCustomParam(t *testing.T) {
	assert.True(t, looksLikeCustomParam("donation_name"))
	assert.True(t, looksLikeCustomParam("is_regular_donation"))
	assert.False(t, looksLikeCustomParam("date"))
	assert.False(t, looksLikeCustomParam("deviceCategory"))
	assert.False(t, looksLikeCustomParam("행사_이름"))
}
