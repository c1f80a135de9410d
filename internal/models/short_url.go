package models

import (
	"encoding/json"
	"time"
)

// Reference is a named pointer from a persisted short URL to another stored
// entity. Name is the join key used when injecting it back into state.
type Reference struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// LocatorState is the navigable state of a single locator. The locator id
// returned by LocatorID tags which concrete type the value holds.
type LocatorState interface {
	LocatorID() string
}

// LocatorData is the locator part of a hydrated short URL.
type LocatorData struct {
	ID      string       `json:"id"`
	Version string       `json:"version"`
	State   LocatorState `json:"state"`
}

// ShortURL is the hydrated short URL returned to callers. Its locator state
// always carries real entity ids, never references.
type ShortURL struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Locator     LocatorData `json:"locator"`
	AccessCount int64       `json:"accessCount"`
	AccessDate  time.Time   `json:"accessDate"`
	CreateDate  time.Time   `json:"createDate"`
}

// ShortURLRecord is the persisted form of a short URL: extracted state as
// JSON plus the references pulled out of it.
type ShortURLRecord struct {
	ID             string          `json:"id"`
	Slug           string          `json:"slug"`
	LocatorID      string          `json:"locatorId"`
	LocatorVersion string          `json:"locatorVersion"`
	State          json.RawMessage `json:"state"`
	References     []Reference     `json:"references"`
	AccessCount    int64           `json:"accessCount"`
	AccessDate     time.Time       `json:"accessDate"`
	CreateDate     time.Time       `json:"createDate"`
}

// Clone returns a deep copy so storage never shares slices with callers.
func (r *ShortURLRecord) Clone() *ShortURLRecord {
	c := *r
	if r.State != nil {
		c.State = append(json.RawMessage(nil), r.State...)
	}
	if r.References != nil {
		c.References = append([]Reference(nil), r.References...)
	}
	return &c
}

// ShortURLPatch is a partial update of a stored record. Nil fields are left
// unchanged; id, slug and createDate cannot be patched. AccessCount and
// AccessDate only ever raise the stored values.
type ShortURLPatch struct {
	LocatorVersion *string
	State          json.RawMessage
	References     []Reference
	AccessCount    *int64
	AccessDate     *time.Time
}

// Apply writes the non-nil fields of p onto r.
func (p ShortURLPatch) Apply(r *ShortURLRecord) {
	if p.LocatorVersion != nil {
		r.LocatorVersion = *p.LocatorVersion
	}
	if p.State != nil {
		r.State = append(json.RawMessage(nil), p.State...)
	}
	if p.References != nil {
		r.References = append([]Reference{}, p.References...)
	}
	if p.AccessCount != nil && *p.AccessCount > r.AccessCount {
		r.AccessCount = *p.AccessCount
	}
	if p.AccessDate != nil && p.AccessDate.After(r.AccessDate) {
		r.AccessDate = *p.AccessDate
	}
}

// CreateShortURLInput is the input of ShortURLClient.Create. The locator is
// selected by Params.LocatorID(); an empty Slug asks for a generated one.
type CreateShortURLInput struct {
	Params LocatorState
	Slug   string
}

// UpdateShortURLInput merges Params, keyed by JSON field name, into the
// stored locator state.
type UpdateShortURLInput struct {
	ID     string
	Params map[string]json.RawMessage
}
