package locator_test

import (
	"context"
	"testing"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/locator"
	"github.com/SergeiKhy/url-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := locator.NewRegistry()

	l, err := locator.Register[locator.LegacyShortURLParams](r, locator.LegacyShortURLDefinition{})
	require.NoError(t, err)
	assert.Equal(t, locator.LegacyShortURLLocatorID, l.ID())

	got, ok := r.Get(locator.LegacyShortURLLocatorID)
	require.True(t, ok)
	assert.Equal(t, l.ID(), got.ID())

	_, ok = r.Get("UNKNOWN")
	assert.False(t, ok)
}

func TestRegistry_DuplicateID(t *testing.T) {
	r := locator.NewRegistry()

	_, err := locator.Register[locator.DashboardParams](r, locator.DashboardDefinition{})
	require.NoError(t, err)

	_, err = locator.Register[locator.DashboardParams](r, locator.DashboardDefinition{})
	assert.ErrorIs(t, err, apperr.ErrDuplicateLocatorID)
	assert.Equal(t, []string{locator.DashboardLocatorID}, r.IDs())
}

func TestRegistry_Decode(t *testing.T) {
	r, err := locator.NewDefaultRegistry()
	require.NoError(t, err)

	state, err := r.Decode(locator.LegacyShortURLLocatorID, []byte(`{"url":"/app/test#foo"}`))
	require.NoError(t, err)
	assert.Equal(t, locator.LegacyShortURLParams{URL: "/app/test#foo"}, state)

	_, err = r.Decode("NOPE", []byte(`{}`))
	assert.ErrorIs(t, err, apperr.ErrLocatorNotFound)

	_, err = r.Decode(locator.DashboardLocatorID, []byte(`{"dashboardId": 5}`))
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestLocator_RejectsForeignState(t *testing.T) {
	r, err := locator.NewDefaultRegistry()
	require.NoError(t, err)

	l, ok := r.Get(locator.DashboardLocatorID)
	require.True(t, ok)

	_, _, err = l.Extract(locator.LegacyShortURLParams{URL: "/app/x#y"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestLegacyShortURL_GetLocation(t *testing.T) {
	def := locator.LegacyShortURLDefinition{}
	ctx := context.Background()

	loc, err := def.GetLocation(ctx, locator.LegacyShortURLParams{URL: "/app/test#foo/bar/baz"})
	require.NoError(t, err)
	assert.Equal(t, "test", loc.App)
	assert.Equal(t, "#foo/bar/baz", loc.Path)
	assert.Equal(t, "/app/test#foo/bar/baz", loc.URL())

	loc, err = def.GetLocation(ctx, locator.LegacyShortURLParams{URL: "/base/app/discover#/view/1?_g=()"})
	require.NoError(t, err)
	assert.Equal(t, "discover", loc.App)
	assert.Equal(t, "#/view/1?_g=()", loc.Path)

	for _, bad := range []string{"https://evil.com/app/x#y", "//evil.com/app/x#y", "/not-an-app-url"} {
		_, err := def.GetLocation(ctx, locator.LegacyShortURLParams{URL: bad})
		assert.ErrorIs(t, err, apperr.ErrInvalid, bad)
	}
}

func TestLegacyShortURL_ExtractHasNoReferences(t *testing.T) {
	def := locator.LegacyShortURLDefinition{}
	in := locator.LegacyShortURLParams{URL: "/app/test#foo/bar/baz"}

	state, refs := def.Extract(in)
	assert.Equal(t, in, state)
	assert.Empty(t, refs)
	assert.Equal(t, in, def.Inject(state, refs))
}

func TestDashboard_ExtractInjectRoundTrip(t *testing.T) {
	def := locator.DashboardDefinition{}
	cases := []locator.DashboardParams{
		{DashboardID: "123", IndexPatternID: "456", Query: "status:500", TimeRange: &locator.TimeRange{From: "now-15m", To: "now"}},
		{DashboardID: "123"},
		{IndexPatternID: "456", Query: "x"},
		{},
	}

	for _, in := range cases {
		state, refs := def.Extract(in)
		assert.Empty(t, state.DashboardID)
		assert.Empty(t, state.IndexPatternID)
		assert.Equal(t, in, def.Inject(state, refs))
	}
}

func TestDashboard_Extract(t *testing.T) {
	_, refs := locator.DashboardDefinition{}.Extract(locator.DashboardParams{DashboardID: "123", IndexPatternID: "456"})

	assert.Equal(t, []models.Reference{
		{ID: "123", Type: "dashboard", Name: "dashboardId"},
		{ID: "456", Type: "index-pattern", Name: "indexPatternId"},
	}, refs)
}

func TestDashboard_InjectMissingReferenceDefaultsToEmpty(t *testing.T) {
	got := locator.DashboardDefinition{}.Inject(
		locator.DashboardParams{Query: "q"},
		[]models.Reference{{ID: "123", Type: "dashboard", Name: "dashboardId"}},
	)

	assert.Equal(t, locator.DashboardParams{DashboardID: "123", Query: "q"}, got)
}

func TestDashboard_GetLocation(t *testing.T) {
	def := locator.DashboardDefinition{}

	loc, err := def.GetLocation(context.Background(), locator.DashboardParams{DashboardID: "abc", Query: "a b"})
	require.NoError(t, err)
	assert.Equal(t, "dashboards", loc.App)
	assert.Equal(t, "#/view/abc?query=a+b", loc.Path)

	loc, err = def.GetLocation(context.Background(), locator.DashboardParams{})
	require.NoError(t, err)
	assert.Equal(t, "#/create", loc.Path)
}

func TestReferences_PrefixAndStrip(t *testing.T) {
	refs := []models.Reference{
		{ID: "1", Type: "dashboard", Name: "dashboardId"},
		{ID: "2", Type: "tag", Name: "tag-2"},
	}

	prefixed := locator.PrefixReferences(locator.ParamsReferencePrefix, refs)
	assert.Equal(t, "locator:params:dashboardId", prefixed[0].Name)
	assert.Equal(t, "dashboardId", refs[0].Name, "input must not be modified")

	mixed := append(prefixed[:1:1], models.Reference{ID: "9", Type: "tag", Name: "tag-9"})
	assert.Equal(t, refs[:1], locator.StripReferences(locator.ParamsReferencePrefix, mixed))

	assert.Equal(t, "2", locator.ReferenceID(refs, "tag", "tag-2"))
	assert.Equal(t, "", locator.ReferenceID(refs, "dashboard", "tag-2"))
}
