package locator

import (
	"context"
	"net/url"
	"regexp"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/models"
)

// LegacyShortURLLocatorID is the locator of plain URL short links.
const LegacyShortURLLocatorID = "LEGACY_SHORT_URL_LOCATOR"

var appPathPattern = regexp.MustCompile(`^.*/app/([^/#]+)(.+)$`)

// LegacyShortURLParams is the state of short URLs created before locators
// existed: a raw application URL.
type LegacyShortURLParams struct {
	URL string `json:"url"`
}

func (LegacyShortURLParams) LocatorID() string { return LegacyShortURLLocatorID }

// LegacyShortURLDefinition stores the URL as is; it has no references.
type LegacyShortURLDefinition struct{}

func (LegacyShortURLDefinition) ID() string { return LegacyShortURLLocatorID }

func (LegacyShortURLDefinition) GetLocation(_ context.Context, state LegacyShortURLParams) (Location, error) {
	u, err := url.Parse(state.URL)
	if err != nil {
		return Location{}, apperr.Wrap(apperr.CodeInvalid, err, "invalid legacy short url")
	}
	if u.IsAbs() || u.Host != "" {
		return Location{}, apperr.New(apperr.CodeInvalid, "legacy short url must be a relative path")
	}

	match := appPathPattern.FindStringSubmatch(state.URL)
	if match == nil {
		return Location{}, apperr.New(apperr.CodeInvalid, "unexpected url path %q", state.URL)
	}

	return Location{
		App:   match[1],
		Path:  match[2],
		State: map[string]any{},
	}, nil
}

func (LegacyShortURLDefinition) Extract(state LegacyShortURLParams) (LegacyShortURLParams, []models.Reference) {
	return state, nil
}

func (LegacyShortURLDefinition) Inject(state LegacyShortURLParams, _ []models.Reference) LegacyShortURLParams {
	return state
}
