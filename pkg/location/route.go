package location

import (
	"encoding/json"
	"strconv"
	"strings"
)

// A RouteComponent is one step on the path from a document's root to a
// feature: either a mapping key or a sequence index.
type RouteComponent struct {
	key   string
	index int
	isKey bool
}

// Key builds a route component that selects a mapping entry by key name.
func Key(name string) RouteComponent {
	return RouteComponent{key: name, isKey: true}
}

// Index builds a route component that selects a sequence element.
func Index(i int) RouteComponent {
	return RouteComponent{index: i}
}

func (c RouteComponent) String() string {
	if c.isKey {
		return c.key
	}
	return strconv.Itoa(c.index)
}

// A Route addresses a feature inside a YAML document as the sequence of
// keys and indices leading to it from the root. Routes are values: every
// derivation returns a new route and never mutates the receiver, so
// locations built from a shared base stay independent.
type Route struct {
	components []RouteComponent
}

// NewRoute builds a route from the given components. With no components it
// addresses the document root.
func NewRoute(components ...RouteComponent) Route {
	return Route{components: components}
}

// With returns a copy of the route extended by the given components.
func (r Route) With(components ...RouteComponent) Route {
	extended := make([]RouteComponent, 0, len(r.components)+len(components))
	extended = append(extended, r.components...)
	extended = append(extended, components...)
	return Route{components: extended}
}

// Parent returns the route with its last component removed. The second
// return is false when the route already addresses the root.
func (r Route) Parent() (Route, bool) {
	if len(r.components) == 0 {
		return Route{}, false
	}
	parent := make([]RouteComponent, len(r.components)-1)
	copy(parent, r.components[:len(r.components)-1])
	return Route{components: parent}, true
}

// Components returns the route's components in order.
func (r Route) Components() []RouteComponent {
	return r.components
}

// Len returns the number of components in the route.
func (r Route) Len() int {
	return len(r.components)
}

func (r Route) String() string {
	if len(r.components) == 0 {
		return "/"
	}
	parts := make([]string, len(r.components))
	for i, c := range r.components {
		parts[i] = c.String()
	}
	return strings.Join(parts, "/")
}

// MarshalJSON renders the route as a flat array of keys and indices.
func (r Route) MarshalJSON() ([]byte, error) {
	parts := make([]interface{}, len(r.components))
	for i, c := range r.components {
		if c.isKey {
			parts[i] = c.key
		} else {
			parts[i] = c.index
		}
	}
	return json.Marshal(parts)
}
