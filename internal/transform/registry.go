package transform

import "fmt"

// Registry dispatches raw records to the Transformer registered for their
// source type.
type Registry struct {
	transformers map[string]Transformer
}

// NewRegistry returns a Registry holding the built-in transformers.
func NewRegistry(controlPlaneID string) *Registry {
	r := &Registry{transformers: map[string]Transformer{}}
	r.Register(APIProduct{})
	r.Register(APIProductVersion{})
	r.Register(Service{})
	r.Register(Route{})
	r.Register(Consumer{ControlPlaneID: controlPlaneID})
	return r
}

// Register adds t, replacing any transformer already registered for its type.
func (r *Registry) Register(t Transformer) {
	r.transformers[t.Type()] = t
}

// For returns the transformer for typ, or a Passthrough when none is registered.
func (r *Registry) For(typ string) Transformer {
	if t, ok := r.transformers[typ]; ok {
		return t
	}
	return Passthrough{SourceType: typ}
}

// Known reports whether a dedicated transformer exists for typ.
func (r *Registry) Known(typ string) bool {
	_, ok := r.transformers[typ]
	return ok
}

// Passthrough shapes records of unrecognized types into the minimal
// catalog document: identifier from id (or name), title from name and the
// raw attribute object as properties.
type Passthrough struct {
	SourceType string
}

func (p Passthrough) Type() string { return p.SourceType }

func (p Passthrough) Transform(e RawEntity, _ ServiceCache) (TargetEntity, error) {
	var id *string
	switch {
	case e.ID != nil:
		id = e.ID
	case e.Name != nil:
		id = e.Name
	default:
		return TargetEntity{}, fmt.Errorf("%s: missing id and name: %w", p.SourceType, ErrNoIdentifier)
	}

	props := map[string]any{}
	for k, v := range e.Attributes.Extra {
		props[k] = v
	}

	return TargetEntity{
		Identifier: *id,
		Title:      e.Name,
		Properties: props,
	}, nil
}

// TransformAll runs t over raws in order. Records that fail are left out
// of the returned entities and reported in errs.
func TransformAll(t Transformer, raws []RawEntity, services ServiceCache) (entities []TargetEntity, errs []error) {
	entities = make([]TargetEntity, 0, len(raws))
	for _, raw := range raws {
		e, err := t.Transform(raw, services)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entities = append(entities, e)
	}
	return entities, errs
}
