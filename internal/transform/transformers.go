package transform

import (
	"fmt"
	"strings"
)

// Source entity types understood by the control-plane search API.
const (
	TypeAPIProduct        = "api_product"
	TypeAPIProductVersion = "api_product_version"
	TypeService           = "service"
	TypeRoute             = "route"
	TypeConsumer          = "consumer"
)

// DefaultProduct is the product every API version is related to.
const DefaultProduct = "Integrations"

// Transformer maps one raw record of a source type to a catalog entity.
// Implementations have no side effects.
type Transformer interface {
	Type() string
	Transform(e RawEntity, services ServiceCache) (TargetEntity, error)
}

// APIProduct transforms api_product records.
type APIProduct struct{}

func (APIProduct) Type() string { return TypeAPIProduct }

func (APIProduct) Transform(e RawEntity, _ ServiceCache) (TargetEntity, error) {
	if e.Name == nil {
		return TargetEntity{}, fmt.Errorf("%s: missing name: %w", TypeAPIProduct, ErrNoIdentifier)
	}

	labels := e.Labels
	if labels == nil {
		labels = map[string]any{}
	}

	a := e.Attributes
	return TargetEntity{
		Identifier: *e.Name,
		Title:      e.Name,
		Properties: map[string]any{
			"name":        value(e.Name),
			"description": value(e.Description),
			"visibility":  value(a.Visibility),
			"createdAt":   a.CreatedAt,
			"updatedAt":   a.UpdatedAt,
			"labels":      labels,
		},
	}, nil
}

// APIProductVersion transforms api_product_version records. The api
// relation is resolved by matching the version's "service" label against
// the cached service names.
type APIProductVersion struct{}

func (APIProductVersion) Type() string { return TypeAPIProductVersion }

func (APIProductVersion) Transform(e RawEntity, services ServiceCache) (TargetEntity, error) {
	if e.ID == nil {
		return TargetEntity{}, fmt.Errorf("%s: missing id: %w", TypeAPIProductVersion, ErrNoIdentifier)
	}

	var api *string
	if name := e.label("service"); name != "" {
		api = services.LookupID(name)
	}

	a := e.Attributes
	return TargetEntity{
		Identifier: *e.ID,
		Title:      e.Name,
		Properties: map[string]any{
			"version":    value(e.Name),
			"status":     value(a.PublishStatus),
			"createdAt":  a.CreatedAt,
			"deprecated": value(a.Deprecated),
			"updatedAt":  a.UpdatedAt,
		},
		Relations: map[string]any{
			"api":     value(api),
			"product": DefaultProduct,
		},
	}, nil
}

// Service transforms service records. Search ids are prefixed with the
// entity type ("service:<uuid>"); the catalog identifier drops the prefix.
type Service struct{}

func (Service) Type() string { return TypeService }

func (Service) Transform(e RawEntity, _ ServiceCache) (TargetEntity, error) {
	if e.ID == nil {
		return TargetEntity{}, fmt.Errorf("%s: missing id: %w", TypeService, ErrNoIdentifier)
	}

	a := e.Attributes
	out := TargetEntity{
		Identifier: ServiceIdentifier(*e.ID),
		Title:      e.Name,
		Properties: map[string]any{
			"name":        value(e.Name),
			"description": value(e.Description),
			"enabled":     value(a.Enabled),
			"host":        value(a.Host),
			"port":        a.Port,
			"protocol":    value(a.Protocol),
			"path":        value(a.Path),
			"url":         value(a.URL),
			"tags":        list(a.Tags),
			"createdAt":   a.CreatedAt,
			"updatedAt":   a.UpdatedAt,
		},
	}

	// No relation key at all without tags: upserting with missing related
	// entity creation would otherwise try to create a product named null.
	if len(a.Tags) > 0 {
		out.Relations = map[string]any{"product": a.Tags[0]}
	}

	return out, nil
}

// ServiceIdentifier returns the part of id after the first ':' or id
// itself when it has no separator.
func ServiceIdentifier(id string) string {
	if _, after, ok := strings.Cut(id, ":"); ok {
		return after
	}
	return id
}

// Route transforms route records.
type Route struct{}

func (Route) Type() string { return TypeRoute }

func (Route) Transform(e RawEntity, _ ServiceCache) (TargetEntity, error) {
	if e.Name == nil {
		return TargetEntity{}, fmt.Errorf("%s: missing name: %w", TypeRoute, ErrNoIdentifier)
	}

	a := e.Attributes
	return TargetEntity{
		Identifier: *e.Name,
		Title:      e.Name,
		Properties: map[string]any{
			"path":         first(a.Paths),
			"methods":      orEmpty(a.Methods),
			"host":         first(a.Hosts),
			"stripPath":    value(a.StripPath),
			"preserveHost": value(a.PreserveHost),
			"createdAt":    a.CreatedAt,
			"updatedAt":    a.UpdatedAt,
		},
		Relations: map[string]any{
			"api": value(a.ServiceID),
		},
	}, nil
}

// Consumer transforms consumer records, relating each one to the
// configured control plane.
type Consumer struct {
	ControlPlaneID string
}

func (Consumer) Type() string { return TypeConsumer }

func (c Consumer) Transform(e RawEntity, _ ServiceCache) (TargetEntity, error) {
	if e.ID == nil {
		return TargetEntity{}, fmt.Errorf("%s: missing id: %w", TypeConsumer, ErrNoIdentifier)
	}

	a := e.Attributes
	title := e.Name
	if a.Username != nil && *a.Username != "" {
		title = a.Username
	}

	return TargetEntity{
		Identifier: *e.ID,
		Title:      title,
		Properties: map[string]any{
			"username":   value(a.Username),
			"custom_id":  value(a.CustomID),
			"tags":       orEmpty(a.Tags),
			"created_at": a.CreatedAt,
			"updated_at": a.UpdatedAt,
		},
		Relations: map[string]any{
			"control_plane_id": c.ControlPlaneID,
		},
	}, nil
}
