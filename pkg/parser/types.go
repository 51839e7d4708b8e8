package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Env is a workflow, job, or step `env:` block. The block is either a
// literal mapping or, in rarer workflows, a whole-block expression such as
// `env: ${{ fromJSON(inputs.env) }}`.
type Env struct {
	// Raw holds the block's text when the whole block is a scalar
	// (normally an expression).
	Raw string
	// Vars holds the literal mapping, with scalar values stringified.
	Vars map[string]string
}

func (e *Env) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	switch value.Kind {
	case yaml.ScalarNode:
		e.Raw = value.Value
		return nil
	case yaml.MappingNode:
		e.Vars = make(map[string]string, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			e.Vars[value.Content[i].Value] = deref(value.Content[i+1]).Value
		}
		return nil
	}
	return fmt.Errorf("line %d: env must be a mapping or an expression", value.Line)
}

// IsExpression reports whether the whole block is computed at run time.
func (e *Env) IsExpression() bool {
	return strings.Contains(e.Raw, "${{")
}

// Lookup returns the literal value of a variable and whether it is set.
func (e *Env) Lookup(name string) (string, bool) {
	v, ok := e.Vars[name]
	return v, ok
}

// Permissions models a `permissions:` block: either one blanket access
// level ("read-all", "write-all") or a scope-to-access mapping.
type Permissions struct {
	// Present distinguishes an explicit block from an absent one.
	Present bool
	// Base is the blanket level, empty for the mapping form.
	Base string
	// Scopes maps scope names ("contents", "id-token", ...) to access
	// levels ("read", "write", "none").
	Scopes map[string]string
}

func (p *Permissions) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	p.Present = true
	switch value.Kind {
	case yaml.ScalarNode:
		p.Base = value.Value
		return nil
	case yaml.MappingNode:
		p.Scopes = make(map[string]string, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			p.Scopes[value.Content[i].Value] = deref(value.Content[i+1]).Value
		}
		return nil
	}
	return fmt.Errorf("line %d: permissions must be a scalar or a mapping", value.Line)
}

// WriteScopes returns the scopes granted write access, sorted by their
// order in the document... the map does not keep order, so callers sort.
func (p *Permissions) WriteScopes() []string {
	var out []string
	for scope, access := range p.Scopes {
		if access == "write" {
			out = append(out, scope)
		}
	}
	return out
}

// RunsOn models a job's `runs-on:` value: a single label, a label list, or
// a group/labels mapping.
type RunsOn struct {
	Labels []string
	Group  string
}

func (r *RunsOn) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	switch value.Kind {
	case yaml.ScalarNode:
		r.Labels = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		for _, item := range value.Content {
			r.Labels = append(r.Labels, deref(item).Value)
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			key, val := value.Content[i].Value, deref(value.Content[i+1])
			switch key {
			case "group":
				r.Group = val.Value
			case "labels":
				if val.Kind == yaml.SequenceNode {
					for _, item := range val.Content {
						r.Labels = append(r.Labels, deref(item).Value)
					}
				} else {
					r.Labels = append(r.Labels, val.Value)
				}
			}
		}
		return nil
	}
	return fmt.Errorf("line %d: runs-on must be a scalar, sequence, or mapping", value.Line)
}

// Secrets models a reusable workflow call's `secrets:` value: the literal
// `inherit`, or a mapping of secret names to values.
type Secrets struct {
	Present bool
	Inherit bool
	Vars    map[string]string
}

func (s *Secrets) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	s.Present = true
	switch value.Kind {
	case yaml.ScalarNode:
		s.Inherit = value.Value == "inherit"
		return nil
	case yaml.MappingNode:
		s.Vars = make(map[string]string, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			s.Vars[value.Content[i].Value] = deref(value.Content[i+1]).Value
		}
		return nil
	}
	return fmt.Errorf("line %d: secrets must be 'inherit' or a mapping", value.Line)
}

// Environment models a job's `environment:` value: a bare environment
// name or a mapping with name and url.
type Environment struct {
	Name string
	URL  string
}

func (e *Environment) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	if value.Kind == yaml.ScalarNode {
		e.Name = value.Value
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: environment must be a scalar or a mapping", value.Line)
	}
	type plain struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	}
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	e.Name = p.Name
	e.URL = p.URL
	return nil
}

// With is a step's `with:` block with scalar values stringified.
type With map[string]string

func (w *With) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: with must be a mapping", value.Line)
	}
	out := make(With, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		out[value.Content[i].Value] = deref(value.Content[i+1]).Value
	}
	*w = out
	return nil
}

// StringList accepts either a single scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	switch value.Kind {
	case yaml.ScalarNode:
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(value.Content))
		for _, item := range value.Content {
			out = append(out, deref(item).Value)
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected a scalar or a sequence of scalars", value.Line)
}

// Triggers models a workflow's `on:` value in all three of its shapes:
// one event name, a list of event names, or a mapping from event names to
// their configuration.
type Triggers struct {
	// Names lists the event names in document order.
	Names []string
	nodes map[string]*yaml.Node
}

func (t *Triggers) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	switch value.Kind {
	case yaml.ScalarNode:
		t.Names = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		for _, item := range value.Content {
			t.Names = append(t.Names, deref(item).Value)
		}
		return nil
	case yaml.MappingNode:
		t.nodes = make(map[string]*yaml.Node, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			name := value.Content[i].Value
			t.Names = append(t.Names, name)
			t.nodes[name] = deref(value.Content[i+1])
		}
		return nil
	}
	return fmt.Errorf("line %d: on must be a scalar, sequence, or mapping", value.Line)
}

// Has reports whether the workflow reacts to the named event.
func (t *Triggers) Has(name string) bool {
	for _, n := range t.Names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Node returns the configuration node of the named event, or nil when the
// event is absent or configured without a body.
func (t *Triggers) Node(name string) *yaml.Node {
	for key, node := range t.nodes {
		if strings.EqualFold(key, name) {
			return node
		}
	}
	return nil
}

// Container models a job `container:` or service entry: a bare image name
// or a mapping with image and registry credentials.
type Container struct {
	Image       string
	Credentials *ContainerCredentials
}

// ContainerCredentials are registry credentials for a container image.
type ContainerCredentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (c *Container) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	if value.Kind == yaml.ScalarNode {
		c.Image = value.Value
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: container must be a scalar or a mapping", value.Line)
	}
	type plain struct {
		Image       string                `yaml:"image"`
		Credentials *ContainerCredentials `yaml:"credentials"`
	}
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	c.Image = p.Image
	c.Credentials = p.Credentials
	return nil
}

// Strategy models a job's `strategy:` block. The matrix is kept as a raw
// node: audits only inspect it for embedded expressions and static value
// lists, and its shape is too open-ended for a typed model.
type Strategy struct {
	Matrix *yaml.Node `yaml:"matrix"`
}

// MatrixIsStatic reports whether the matrix expands to a fixed value set,
// i.e. no scalar anywhere in it contains a template expression.
func (s *Strategy) MatrixIsStatic() bool {
	if s == nil || s.Matrix == nil {
		return true
	}
	return nodeIsStatic(s.Matrix)
}

// MatrixValueIsStatic reports whether the matrix dimension named by a
// `matrix.foo`-style context path expands to a fixed value set. Only the
// first path component below `matrix` selects the dimension; deeper
// components would need index tracking that the expansion rules don't
// reward. A bare `matrix` path checks the whole matrix, and a path naming
// a missing dimension is static: the workflow is malformed, not injectable.
func (s *Strategy) MatrixValueIsStatic(contextPath string) bool {
	if s == nil || s.Matrix == nil {
		return true
	}
	matrix := deref(s.Matrix)
	if matrix.Kind == yaml.ScalarNode {
		// The whole matrix is generated by an expression.
		return false
	}

	keys := strings.Split(contextPath, ".")[1:]
	if len(keys) == 0 {
		return nodeIsStatic(matrix)
	}
	if matrix.Kind != yaml.MappingNode {
		return true
	}
	for i := 0; i+1 < len(matrix.Content); i += 2 {
		if matrix.Content[i].Value == keys[0] {
			return nodeIsStatic(deref(matrix.Content[i+1]))
		}
	}
	return true
}

func nodeIsStatic(n *yaml.Node) bool {
	static := true
	walkNode(n, func(n *yaml.Node) {
		if n.Kind == yaml.ScalarNode && strings.Contains(n.Value, "${{") {
			static = false
		}
	})
	return static
}

func walkNode(n *yaml.Node, visit func(*yaml.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.Content {
		walkNode(child, visit)
	}
}

// deref follows alias nodes to their anchors.
func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
