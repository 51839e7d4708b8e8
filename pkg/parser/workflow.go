package parser

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/argos-audit/argos/pkg/location"
)

// Workflow is a parsed GitHub Actions workflow together with the source
// document it was read from.
type Workflow struct {
	Name        string       `yaml:"name"`
	RunName     string       `yaml:"run-name"`
	On          Triggers     `yaml:"on"`
	Permissions Permissions  `yaml:"permissions"`
	Env         Env          `yaml:"env"`
	Concurrency *Concurrency `yaml:"concurrency"`
	Jobs        Jobs         `yaml:"jobs"`

	doc *location.Document
}

// Concurrency is a workflow or job `concurrency:` block. The bare-scalar
// form names just the group.
type Concurrency struct {
	Group            string
	CancelInProgress string
}

func (c *Concurrency) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	if value.Kind == yaml.ScalarNode {
		c.Group = value.Value
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: concurrency must be a scalar or a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		val := deref(value.Content[i+1])
		switch value.Content[i].Value {
		case "group":
			c.Group = val.Value
		case "cancel-in-progress":
			c.CancelInProgress = val.Value
		}
	}
	return nil
}

// Jobs holds a workflow's jobs in document order.
type Jobs []*Job

func (j *Jobs) UnmarshalYAML(value *yaml.Node) error {
	value = deref(value)
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: jobs must be a mapping", value.Line)
	}
	out := make(Jobs, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		job := new(Job)
		if err := deref(value.Content[i+1]).Decode(job); err != nil {
			return err
		}
		job.ID = value.Content[i].Value
		job.Index = len(out)
		out = append(out, job)
	}
	*j = out
	return nil
}

// Job is a single entry under `jobs:`. A job either runs steps or calls a
// reusable workflow via `uses:`, never both.
type Job struct {
	ID    string `yaml:"-"`
	Index int    `yaml:"-"`

	Name        string                `yaml:"name"`
	If          string                `yaml:"if"`
	RunsOn      RunsOn                `yaml:"runs-on"`
	Permissions Permissions           `yaml:"permissions"`
	Needs       StringList            `yaml:"needs"`
	Env         Env                   `yaml:"env"`
	Environment *Environment          `yaml:"environment"`
	Steps       []*Step               `yaml:"steps"`
	Uses        string                `yaml:"uses"`
	With        With                  `yaml:"with"`
	Secrets     Secrets               `yaml:"secrets"`
	Strategy    *Strategy             `yaml:"strategy"`
	Container   *Container            `yaml:"container"`
	Services    map[string]*Container `yaml:"services"`

	workflow *Workflow
}

// Step is a single entry under a job's `steps:`.
type Step struct {
	Index int `yaml:"-"`

	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	If               string `yaml:"if"`
	Uses             string `yaml:"uses"`
	Run              string `yaml:"run"`
	Shell            string `yaml:"shell"`
	WorkingDirectory string `yaml:"working-directory"`
	Env              Env    `yaml:"env"`
	With             With   `yaml:"with"`
	ContinueOnError  string `yaml:"continue-on-error"`

	job *Job
}

// bind wires parent references and step indices after decoding.
func (w *Workflow) bind(doc *location.Document) {
	w.doc = doc
	for _, job := range w.Jobs {
		job.workflow = w
		for idx, step := range job.Steps {
			step.Index = idx
			step.job = job
		}
	}
}

// Doc returns the source document the workflow was parsed from.
func (w *Workflow) Doc() *location.Document { return w.doc }

// Key returns the input key of the source document.
func (w *Workflow) Key() location.InputKey { return w.doc.Key() }

// Filename returns the base name of the source file.
func (w *Workflow) Filename() string { return w.doc.Key().Filename() }

// Location returns a symbolic location covering the entire workflow.
func (w *Workflow) Location() location.SymbolicLocation {
	return location.NewSymbolicLocation(w.doc.Key())
}

// Job returns the job with the given ID, or nil.
func (w *Workflow) Job(id string) *Job {
	for _, job := range w.Jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

// Workflow returns the workflow the job belongs to.
func (j *Job) Workflow() *Workflow { return j.workflow }

// IsReusable reports whether the job calls a reusable workflow instead of
// running steps.
func (j *Job) IsReusable() bool { return j.Uses != "" }

// Location returns a symbolic location covering the entire job.
func (j *Job) Location() location.SymbolicLocation {
	return j.workflow.Location().WithKeys(location.Key("jobs"), location.Key(j.ID))
}

// KeyLocation returns a symbolic location covering just the job's ID key.
func (j *Job) KeyLocation() location.SymbolicLocation {
	return j.Location().KeyOnly()
}

// Job returns the job the step belongs to.
func (s *Step) Job() *Job { return s.job }

// Workflow returns the workflow the step belongs to.
func (s *Step) Workflow() *Workflow { return s.job.workflow }

// IsRun reports whether the step executes an inline script.
func (s *Step) IsRun() bool { return s.Run != "" }

// IsUses reports whether the step invokes an action.
func (s *Step) IsUses() bool { return s.Uses != "" }

// ShellOrDefault returns the step's shell, falling back to bash.
func (s *Step) ShellOrDefault() string {
	if s.Shell != "" {
		return s.Shell
	}
	return "bash"
}

// Location returns a symbolic location covering the entire step.
func (s *Step) Location() location.SymbolicLocation {
	return s.job.Location().WithKeys(location.Key("steps"), location.Index(s.Index))
}

// LocationWithKeys extends the step's route deeper into its own mapping,
// e.g. to the `run:` or a `with:` entry.
func (s *Step) LocationWithKeys(components ...location.RouteComponent) location.SymbolicLocation {
	return s.Location().WithKeys(components...)
}

// LocationWithName returns the step's `name:` entry when it has one, and
// the whole step otherwise. Findings use it as a context location that
// identifies the step without repeating its whole body.
func (s *Step) LocationWithName() location.SymbolicLocation {
	if s.Name != "" {
		return s.LocationWithKeys(location.Key("name"))
	}
	return s.Location()
}
