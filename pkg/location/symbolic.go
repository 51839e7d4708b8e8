package location

import "encoding/json"

// FeatureKind selects how much of a routed feature a location covers.
type FeatureKind int

const (
	// FeatureSpan covers the whole feature: for a mapping entry that is
	// the key token through the end of its value.
	FeatureSpan FeatureKind = iota
	// FeatureKeyOnly covers just the key token of a mapping entry.
	FeatureKeyOnly
)

func (k FeatureKind) MarshalJSON() ([]byte, error) {
	if k == FeatureKeyOnly {
		return json.Marshal("key-only")
	}
	return json.Marshal("span")
}

// A SymbolicLocation names a feature of a document by route rather than by
// position, so audits can describe what they found without touching source
// offsets. Resolving it against the document yields the concrete span.
type SymbolicLocation struct {
	Key        InputKey    `json:"key"`
	Annotation string      `json:"annotation,omitempty"`
	Link       string      `json:"link,omitempty"`
	Route      Route       `json:"route"`
	Kind       FeatureKind `json:"kind"`
	Primary    bool        `json:"primary"`
}

// NewSymbolicLocation builds a root location for the given document key.
func NewSymbolicLocation(key InputKey) SymbolicLocation {
	return SymbolicLocation{Key: key}
}

// Annotated returns a copy of the location with the given annotation.
func (l SymbolicLocation) Annotated(note string) SymbolicLocation {
	l.Annotation = note
	return l
}

// WithKeys returns a copy of the location routed deeper by the given
// components.
func (l SymbolicLocation) WithKeys(components ...RouteComponent) SymbolicLocation {
	l.Route = l.Route.With(components...)
	return l
}

// KeyOnly returns a copy of the location that covers just the key token of
// the routed mapping entry.
func (l SymbolicLocation) KeyOnly() SymbolicLocation {
	l.Kind = FeatureKeyOnly
	return l
}

// AsPrimary returns a copy of the location marked as the finding's primary
// location.
func (l SymbolicLocation) AsPrimary() SymbolicLocation {
	l.Primary = true
	return l
}

// WithURL returns a copy of the location carrying a supporting link, e.g.
// to the advisory a vulnerable action was reported in.
func (l SymbolicLocation) WithURL(link string) SymbolicLocation {
	l.Link = link
	return l
}
