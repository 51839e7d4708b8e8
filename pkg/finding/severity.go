package finding

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity grades how much damage a finding enables. The zero value is
// Unknown; the ordering is meaningful and drives exit codes and filtering.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityInformational
	SeverityLow
	SeverityMedium
	SeverityHigh
)

var severityNames = map[Severity]string{
	SeverityUnknown:       "unknown",
	SeverityInformational: "informational",
	SeverityLow:           "low",
	SeverityMedium:        "medium",
	SeverityHigh:          "high",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ExitCode returns the process exit code that reports this severity as the
// worst one found.
func (s Severity) ExitCode() int {
	return 10 + int(s)
}

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(text string) (Severity, error) {
	for value, name := range severityNames {
		if strings.EqualFold(text, name) {
			return value, nil
		}
	}
	return SeverityUnknown, fmt.Errorf("unknown severity %q", text)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseSeverity(value.Value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Confidence grades how certain an audit is that a finding is real.
type Confidence int

const (
	ConfidenceUnknown Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

var confidenceNames = map[Confidence]string{
	ConfidenceUnknown: "unknown",
	ConfidenceLow:     "low",
	ConfidenceMedium:  "medium",
	ConfidenceHigh:    "high",
}

func (c Confidence) String() string {
	if name, ok := confidenceNames[c]; ok {
		return name
	}
	return fmt.Sprintf("confidence(%d)", int(c))
}

// ParseConfidence parses a confidence name, case-insensitively.
func ParseConfidence(text string) (Confidence, error) {
	for value, name := range confidenceNames {
		if strings.EqualFold(text, name) {
			return value, nil
		}
	}
	return ConfidenceUnknown, fmt.Errorf("unknown confidence %q", text)
}

func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Confidence) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseConfidence(name)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c *Confidence) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseConfidence(value.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Persona is the audience a finding is worth showing to. Regular runs see
// only regular findings; pedantic runs add the nitpicks; auditor runs see
// everything down to the "can't prove it's fine" results.
type Persona int

const (
	PersonaRegular Persona = iota
	PersonaPedantic
	PersonaAuditor
)

var personaNames = map[Persona]string{
	PersonaRegular:  "regular",
	PersonaPedantic: "pedantic",
	PersonaAuditor:  "auditor",
}

func (p Persona) String() string {
	if name, ok := personaNames[p]; ok {
		return name
	}
	return fmt.Sprintf("persona(%d)", int(p))
}

// ParsePersona parses a persona name, case-insensitively.
func ParsePersona(text string) (Persona, error) {
	for value, name := range personaNames {
		if strings.EqualFold(text, name) {
			return value, nil
		}
	}
	return PersonaRegular, fmt.Errorf("unknown persona %q", text)
}

func (p Persona) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Persona) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParsePersona(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p *Persona) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParsePersona(value.Value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
