// Package parser decodes raw API specification payloads into the
// format-neutral document model. Parsers are pure: no I/O, no partial
// mutation on failure.
package parser

import (
	"bytes"
	"encoding/json"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

// Parser decodes one declared format.
type Parser interface {
	Format() domain.Format
	Parse(payload []byte) (*domain.Document, error)
}

// Registry dispatches parsers by declared format. Adding a format means
// registering a parser; the orchestrator never changes.
type Registry struct {
	byFormat map[domain.Format]Parser
}

// NewRegistry creates a registry over the given parsers.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byFormat: make(map[domain.Format]Parser, len(parsers))}
	for _, p := range parsers {
		r.byFormat[p.Format()] = p
	}
	return r
}

// Default returns a registry with all supported formats registered.
func Default() *Registry {
	return NewRegistry(
		NewOpenAPIParser(domain.FormatOpenAPIJSON),
		NewOpenAPIParser(domain.FormatOpenAPIYAML),
		NewPostmanParser(),
	)
}

// Parse decodes the payload according to the declared format. When the
// format is unknown the payload content is sniffed first; if sniffing
// cannot determine a supported format an UnsupportedFormatError is
// returned.
func (r *Registry) Parse(payload []byte, format domain.Format) (*domain.Document, error) {
	if format == domain.FormatUnknown || format == "" {
		format = Sniff(payload)
		if format == domain.FormatUnknown {
			return nil, &domain.UnsupportedFormatError{Format: domain.FormatUnknown}
		}
	}
	p, ok := r.byFormat[format]
	if !ok {
		return nil, &domain.UnsupportedFormatError{Format: format}
	}
	return p.Parse(payload)
}

// Sniff inspects payload content and guesses a supported format.
// Returns FormatUnknown when nothing matches.
func Sniff(payload []byte) domain.Format {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return domain.FormatUnknown
	}

	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return domain.FormatUnknown
		}
		if _, ok := probe["openapi"]; ok {
			return domain.FormatOpenAPIJSON
		}
		if _, ok := probe["swagger"]; ok {
			return domain.FormatOpenAPIJSON
		}
		_, hasInfo := probe["info"]
		_, hasItems := probe["item"]
		if hasInfo && hasItems {
			return domain.FormatPostmanJSON
		}
		return domain.FormatUnknown
	}

	var probe map[string]interface{}
	if err := yaml.Unmarshal(trimmed, &probe); err != nil {
		return domain.FormatUnknown
	}
	if _, ok := probe["openapi"]; ok {
		return domain.FormatOpenAPIYAML
	}
	if _, ok := probe["swagger"]; ok {
		return domain.FormatOpenAPIYAML
	}
	return domain.FormatUnknown
}

// refPattern matches well-formed {{name}} reference expressions.
var refPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// danglingRefPattern matches a {{ opener with no closing braces.
var danglingRefPattern = regexp.MustCompile(`\{\{[^{}]*$`)

// ExtractRefs returns the reference expressions found in s. Well-formed
// {{name}} expressions yield their inner name; an unterminated opener
// is returned raw so the validator can flag it as malformed syntax.
func ExtractRefs(s string) []string {
	var refs []string
	for _, m := range refPattern.FindAllStringSubmatch(s, -1) {
		refs = append(refs, m[1])
	}
	stripped := refPattern.ReplaceAllString(s, "")
	if m := danglingRefPattern.FindString(stripped); m != "" {
		refs = append(refs, m)
	}
	return refs
}
