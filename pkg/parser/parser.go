package parser

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/argos-audit/argos/pkg/errors"
	"github.com/argos-audit/argos/pkg/location"
)

// LoadWorkflowBytes parses workflow content that has already been read,
// keyed by its origin.
func LoadWorkflowBytes(key location.InputKey, content []byte) (*Workflow, error) {
	doc, err := location.NewDocument(key, content)
	if err != nil {
		return nil, errors.NewWorkflowError("failed to parse workflow", err, key.String())
	}
	var wf Workflow
	if err := yaml.Unmarshal(content, &wf); err != nil {
		return nil, errors.NewWorkflowError("failed to parse workflow", err, key.String())
	}
	wf.bind(doc)
	return &wf, nil
}

// LoadWorkflow loads and parses a single workflow file from disk.
func LoadWorkflow(filePath string) (*Workflow, error) {
	if !strings.HasSuffix(filePath, ".yml") && !strings.HasSuffix(filePath, ".yaml") {
		return nil, errors.NewWorkflowError(
			fmt.Sprintf("file %s does not have a YAML extension (.yml or .yaml)", filePath), nil, filePath)
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.NewWorkflowError("failed to read workflow file", err, filePath)
	}
	return LoadWorkflowBytes(location.LocalKey(filePath), content)
}

// LoadActionBytes parses action definition content that has already been
// read, keyed by its origin.
func LoadActionBytes(key location.InputKey, content []byte) (*Action, error) {
	doc, err := location.NewDocument(key, content)
	if err != nil {
		return nil, errors.NewWorkflowError("failed to parse action definition", err, key.String())
	}
	var action Action
	if err := yaml.Unmarshal(content, &action); err != nil {
		return nil, errors.NewWorkflowError("failed to parse action definition", err, key.String())
	}
	action.bind(doc)
	return &action, nil
}

// LoadAction loads and parses a single action.yml or action.yaml from disk.
func LoadAction(filePath string) (*Action, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.NewWorkflowError("failed to read action definition", err, filePath)
	}
	return LoadActionBytes(location.LocalKey(filePath), content)
}

