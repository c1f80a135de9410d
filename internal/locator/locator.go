// Package locator holds locator definitions and the registry that maps a
// locator id to one. A locator describes a class of navigable application
// state and knows how to move entity ids out of that state (Extract) and
// back in (Inject) so the state can be persisted safely.
package locator

import (
	"context"
	"encoding/json"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/models"
)

// Location is where a locator state points inside the application.
type Location struct {
	App   string         `json:"app"`
	Path  string         `json:"path"`
	State map[string]any `json:"state"`
}

// URL renders the location as an application-relative URL.
func (l Location) URL() string {
	return "/app/" + l.App + l.Path
}

// Definition is implemented by each locator for its own state type S.
// S must be a non-pointer struct type so it can be decoded into directly.
//
// Extract must never fail. Inject must tolerate missing references by
// leaving the affected field empty.
type Definition[S models.LocatorState] interface {
	ID() string
	GetLocation(ctx context.Context, state S) (Location, error)
	Extract(state S) (S, []models.Reference)
	Inject(state S, references []models.Reference) S
}

// Locator is the registry's view of a Definition with the state type erased.
type Locator interface {
	ID() string
	Decode(data []byte) (models.LocatorState, error)
	GetLocation(ctx context.Context, state models.LocatorState) (Location, error)
	Extract(state models.LocatorState) (models.LocatorState, []models.Reference, error)
	Inject(state models.LocatorState, references []models.Reference) (models.LocatorState, error)
}

type typedLocator[S models.LocatorState] struct {
	def Definition[S]
}

func (l typedLocator[S]) ID() string {
	return l.def.ID()
}

func (l typedLocator[S]) Decode(data []byte) (models.LocatorState, error) {
	var state S
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalid, err, "invalid params for locator %q", l.def.ID())
	}
	return state, nil
}

func (l typedLocator[S]) GetLocation(ctx context.Context, state models.LocatorState) (Location, error) {
	s, err := l.cast(state)
	if err != nil {
		return Location{}, err
	}
	return l.def.GetLocation(ctx, s)
}

func (l typedLocator[S]) Extract(state models.LocatorState) (models.LocatorState, []models.Reference, error) {
	s, err := l.cast(state)
	if err != nil {
		return nil, nil, err
	}
	extracted, refs := l.def.Extract(s)
	return extracted, refs, nil
}

func (l typedLocator[S]) Inject(state models.LocatorState, references []models.Reference) (models.LocatorState, error) {
	s, err := l.cast(state)
	if err != nil {
		return nil, err
	}
	return l.def.Inject(s, references), nil
}

func (l typedLocator[S]) cast(state models.LocatorState) (S, error) {
	s, ok := state.(S)
	if !ok {
		var zero S
		return zero, apperr.New(apperr.CodeInvalid, "locator %q cannot handle state of type %T", l.def.ID(), state)
	}
	return s, nil
}
