/*
Copyright 2025 Argos Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package report

import (
	"fmt"
	"strings"

	"github.com/argos-audit/argos/pkg/finding"
)

// generateGitHubReport writes one workflow command per finding. When the
// output lands in a GitHub Actions step log, the runner turns each line
// into an annotation on the named file.
func (g *Generator) generateGitHubReport(r *Results) error {
	for _, f := range r.Findings {
		if _, err := fmt.Fprintln(g.out, annotationFor(f)); err != nil {
			return err
		}
	}
	return nil
}

func annotationFor(f *finding.Finding) string {
	level := annotationLevel(f.Severity)
	message := f.Desc
	if f.URL != "" {
		message = fmt.Sprintf("%s (%s)", f.Desc, f.URL)
	}

	primary := f.PrimaryLocation()
	if primary == nil {
		return fmt.Sprintf("::%s title=%s::%s",
			level, escapeAnnotationProperty(f.Ident), escapeAnnotationData(message))
	}

	span := primary.Concrete.Span
	props := []string{
		"file=" + escapeAnnotationProperty(primary.Symbolic.Key.Path),
	}
	if span.Start.Line > 0 {
		endLine := span.End.Line
		// A span ending in column 1 stops at the previous line break.
		if span.End.Column <= 1 && endLine > span.Start.Line {
			endLine--
		}
		props = append(props,
			fmt.Sprintf("line=%d", span.Start.Line),
			fmt.Sprintf("endLine=%d", endLine))
		// The runner only honors column properties within a single line.
		if endLine == span.Start.Line && span.End.Column > span.Start.Column {
			props = append(props,
				fmt.Sprintf("col=%d", span.Start.Column),
				fmt.Sprintf("endColumn=%d", span.End.Column))
		}
	}
	props = append(props, "title="+escapeAnnotationProperty(f.Ident))

	return fmt.Sprintf("::%s %s::%s",
		level, strings.Join(props, ","), escapeAnnotationData(message))
}

func annotationLevel(s finding.Severity) string {
	switch s {
	case finding.SeverityHigh:
		return "error"
	case finding.SeverityMedium, finding.SeverityLow:
		return "warning"
	default:
		return "notice"
	}
}

// escapeAnnotationData escapes the message part of a workflow command.
func escapeAnnotationData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}

// escapeAnnotationProperty escapes a property value of a workflow command.
func escapeAnnotationProperty(s string) string {
	s = escapeAnnotationData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	s = strings.ReplaceAll(s, ",", "%2C")
	return s
}
