package finding

import (
	argoserrors "github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/location"
)

// Builder assembles a finding incrementally and checks the model's
// invariants when built. The zero gradings are Unknown severity, Unknown
// confidence, and the regular persona.
type Builder struct {
	finding Finding
	pending []pendingLocation
}

type pendingLocation struct {
	symbolic location.SymbolicLocation
	concrete *location.ConcreteLocation
}

// NewFinding starts a builder for the given rule identity.
func NewFinding(ident, desc, url string) *Builder {
	return &Builder{finding: Finding{Ident: ident, Desc: desc, URL: url}}
}

// Severity sets the finding's severity.
func (b *Builder) Severity(s Severity) *Builder {
	b.finding.Severity = s
	return b
}

// Confidence sets the finding's confidence.
func (b *Builder) Confidence(c Confidence) *Builder {
	b.finding.Confidence = c
	return b
}

// Persona sets the least demanding persona the finding is shown to.
func (b *Builder) Persona(p Persona) *Builder {
	b.finding.Persona = p
	return b
}

// AddLocation adds a symbolic location, resolved against the document at
// build time.
func (b *Builder) AddLocation(sym location.SymbolicLocation) *Builder {
	b.pending = append(b.pending, pendingLocation{symbolic: sym})
	return b
}

// AddResolvedLocation adds a location whose concrete extent the caller
// already computed, e.g. from a raw text match outside the YAML structure.
func (b *Builder) AddResolvedLocation(sym location.SymbolicLocation, concrete location.ConcreteLocation) *Builder {
	b.pending = append(b.pending, pendingLocation{symbolic: sym, concrete: &concrete})
	return b
}

// Build resolves every pending location against doc and returns the
// finished finding. It fails when no location was marked primary, or when
// a location's route does not resolve in the document.
func (b *Builder) Build(doc *location.Document) (*Finding, error) {
	hasPrimary := false
	for _, p := range b.pending {
		if p.symbolic.Primary {
			hasPrimary = true
			break
		}
	}
	if !hasPrimary {
		return nil, argoserrors.NewContractError("at least one location must be marked primary")
	}

	built := b.finding
	built.Locations = make([]Location, 0, len(b.pending))
	for _, p := range b.pending {
		if p.concrete != nil {
			built.Locations = append(built.Locations, Location{Symbolic: p.symbolic, Concrete: *p.concrete})
			continue
		}
		concrete, err := doc.Resolve(p.symbolic)
		if err != nil {
			return nil, err
		}
		built.Locations = append(built.Locations, Location{Symbolic: p.symbolic, Concrete: concrete})
	}
	built.Ignored = built.Suppressed()
	return &built, nil
}
