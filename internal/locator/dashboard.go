package locator

import (
	"context"
	"net/url"

	"github.com/SergeiKhy/url-service/internal/models"
)

const (
	// DashboardLocatorID opens a dashboard app state.
	DashboardLocatorID = "DASHBOARD_APP_LOCATOR"

	dashboardRefType    = "dashboard"
	indexPatternRefType = "index-pattern"

	dashboardIDRefName    = "dashboardId"
	indexPatternIDRefName = "indexPatternId"
)

// TimeRange is a relative or absolute range, e.g. "now-15m" to "now".
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DashboardParams opens a dashboard, optionally with a query over an index
// pattern and a time range.
type DashboardParams struct {
	DashboardID    string     `json:"dashboardId"`
	IndexPatternID string     `json:"indexPatternId"`
	Query          string     `json:"query,omitempty"`
	TimeRange      *TimeRange `json:"timeRange,omitempty"`
}

func (DashboardParams) LocatorID() string { return DashboardLocatorID }

// DashboardDefinition moves the dashboard and index pattern ids into
// references, so stored state holds neither.
type DashboardDefinition struct{}

func (DashboardDefinition) ID() string { return DashboardLocatorID }

func (DashboardDefinition) GetLocation(_ context.Context, state DashboardParams) (Location, error) {
	path := "#/create"
	if state.DashboardID != "" {
		path = "#/view/" + url.PathEscape(state.DashboardID)
	}

	q := url.Values{}
	if state.Query != "" {
		q.Set("query", state.Query)
	}
	if state.IndexPatternID != "" {
		q.Set("indexPattern", state.IndexPatternID)
	}
	if state.TimeRange != nil {
		q.Set("from", state.TimeRange.From)
		q.Set("to", state.TimeRange.To)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	return Location{
		App:   "dashboards",
		Path:  path,
		State: map[string]any{},
	}, nil
}

func (DashboardDefinition) Extract(state DashboardParams) (DashboardParams, []models.Reference) {
	var refs []models.Reference
	if state.DashboardID != "" {
		refs = append(refs, models.Reference{ID: state.DashboardID, Type: dashboardRefType, Name: dashboardIDRefName})
	}
	if state.IndexPatternID != "" {
		refs = append(refs, models.Reference{ID: state.IndexPatternID, Type: indexPatternRefType, Name: indexPatternIDRefName})
	}

	state.DashboardID = ""
	state.IndexPatternID = ""
	return state, refs
}

func (DashboardDefinition) Inject(state DashboardParams, references []models.Reference) DashboardParams {
	state.DashboardID = ReferenceID(references, dashboardRefType, dashboardIDRefName)
	state.IndexPatternID = ReferenceID(references, indexPatternRefType, indexPatternIDRefName)
	return state
}
