// Package transform converts raw control-plane search records into catalog
// entity documents.
//
// Source records are loosely shaped: every field is optional and the
// attribute set depends on the entity type. RawEntity declares each field
// the transformers read as optional, and the transformers substitute
// null or empty defaults instead of failing. Each source type has its own
// Transformer; a Registry dispatches on the type tag and falls back to
// Passthrough for tags it does not know.
package transform

import (
	"encoding/json"
	"errors"
)

// ErrNoIdentifier is returned when the field a transformer derives the
// catalog identifier from is missing from the raw record.
var ErrNoIdentifier = errors.New("raw entity has no identifier")

// RawEntity is a record returned by the control-plane search API.
type RawEntity struct {
	ID          *string        `json:"id,omitempty"`
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Labels      map[string]any `json:"labels,omitempty"`
	Attributes  Attributes     `json:"attributes"`

	// Fields holds the complete record as decoded, including keys not
	// declared above.
	Fields map[string]any `json:"-"`
}

// Attributes is the union of the per-type attribute objects.
type Attributes struct {
	// api_product, api_product_version
	Visibility    *string `json:"visibility,omitempty"`
	PublishStatus *string `json:"publish_status,omitempty"`
	Deprecated    *bool   `json:"deprecated,omitempty"`

	// service
	Enabled  *bool   `json:"enabled,omitempty"`
	Host     *string `json:"host,omitempty"`
	Port     any     `json:"port,omitempty"`
	Protocol *string `json:"protocol,omitempty"`
	Path     *string `json:"path,omitempty"`
	URL      *string `json:"url,omitempty"`

	// route
	Paths        []string `json:"paths,omitempty"`
	Methods      []string `json:"methods,omitempty"`
	Hosts        []string `json:"hosts,omitempty"`
	StripPath    *bool    `json:"strip_path,omitempty"`
	PreserveHost *bool    `json:"preserve_host,omitempty"`
	ServiceID    *string  `json:"service_id,omitempty"`

	// consumer
	Username *string `json:"username,omitempty"`
	CustomID *string `json:"custom_id,omitempty"`

	Tags []string `json:"tags,omitempty"`

	// Timestamps are passed through untouched, as is Port; the API has
	// returned both strings and numbers for them.
	CreatedAt any `json:"created_at,omitempty"`
	UpdatedAt any `json:"updated_at,omitempty"`

	// Extra holds the attribute object as decoded.
	Extra map[string]any `json:"-"`
}

// UnmarshalJSON decodes the declared fields and keeps the full record in Fields.
func (e *RawEntity) UnmarshalJSON(data []byte) error {
	type plain RawEntity
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*e = RawEntity(p)
	e.Fields = fields
	return nil
}

// UnmarshalJSON decodes the declared attributes and keeps the full object in Extra.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	type plain Attributes
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var extra map[string]any
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}

	*a = Attributes(p)
	a.Extra = extra
	return nil
}

// TargetEntity is one catalog entity document.
type TargetEntity struct {
	Identifier string         `json:"identifier"`
	Title      *string        `json:"title"`
	Properties map[string]any `json:"properties"`
	Relations  map[string]any `json:"relations,omitempty"`
}

// value dereferences p, yielding an untyped nil for a nil pointer so that
// absent fields encode as JSON null.
func value[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// list yields nil for a nil slice, keeping "absent" distinct from "empty".
func list(s []string) any {
	if s == nil {
		return nil
	}
	return s
}

// label returns the string label key, or "" when it is absent or not a string.
func (e RawEntity) label(key string) string {
	s, _ := e.Labels[key].(string)
	return s
}

func first(s []string) any {
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
