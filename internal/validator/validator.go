// Package validator checks a parsed document for structural and
// semantic problems before any graph is built. All checks run and
// accumulate, so one report lists everything that is wrong.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

// placeholderPattern matches single-brace {name} path parameters after
// double-brace reference expressions have been stripped.
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

var refExprPattern = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// Validator validates intermediate documents. Validation is a pure
// function of the document; running it twice yields identical reports.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs all checks against the document and returns the full
// report. The verdict is valid iff the error list is empty; missing
// dependencies and warnings are surfaced but do not fail validation.
func (v *Validator) Validate(doc *domain.Document) domain.ValidationReport {
	report := domain.ValidationReport{}

	seen := make(map[string]bool, len(doc.Endpoints))
	resolvable := resolvableIdentifiers(doc)
	missing := make(map[string]bool)

	for i, ep := range doc.Endpoints {
		label := endpointLabel(i, ep)

		report.Errors = append(report.Errors, structuralErrors(label, ep)...)
		v.checkPathParameters(&report, label, ep)
		v.checkReferences(&report, label, ep, resolvable, missing)

		identity := ep.Identity()
		if seen[identity] {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: duplicate endpoint %s", label, identity))
		}
		seen[identity] = true
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// structuralErrors enforces the basic shape of an endpoint.
func structuralErrors(label string, ep domain.EndpointDef) []string {
	err := validation.ValidateStruct(&ep,
		validation.Field(&ep.Method, validation.Required.Error("method is required")),
		validation.Field(&ep.URL, validation.Required.Error("url template is required")),
	)
	if err == nil {
		return nil
	}

	ve, ok := err.(validation.Errors)
	if !ok {
		return []string{fmt.Sprintf("%s: %v", label, err)}
	}
	fields := make([]string, 0, len(ve))
	for field := range ve {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %v", label, ve[field]))
	}
	return msgs
}

// checkPathParameters verifies that every {name} placeholder in the URL
// template is declared exactly once, and warns about declared path
// parameters the template never references.
func (v *Validator) checkPathParameters(report *domain.ValidationReport, label string, ep domain.EndpointDef) {
	referenced := pathPlaceholders(ep.URL)

	declared := make(map[string]int)
	for _, p := range ep.Parameters {
		if p.Location == "path" {
			declared[p.Name]++
		}
	}

	for _, name := range referenced {
		switch declared[name] {
		case 0:
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: path parameter {%s} is referenced but not declared", label, name))
		case 1:
			// declared exactly once
		default:
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: path parameter {%s} is declared %d times", label, name, declared[name]))
		}
	}

	refSet := make(map[string]bool, len(referenced))
	for _, name := range referenced {
		refSet[name] = true
	}
	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !refSet[name] {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: declared path parameter %q is never referenced", label, name))
		}
	}
}

// checkReferences resolves every reference expression found in the
// endpoint. Unresolvable references are recorded as missing
// dependencies; syntactically broken ones are hard errors.
func (v *Validator) checkReferences(report *domain.ValidationReport, label string, ep domain.EndpointDef, resolvable map[string]bool, missing map[string]bool) {
	for _, ref := range ep.Refs {
		trimmed := strings.TrimSpace(ref)
		if trimmed == "" || strings.ContainsAny(trimmed, "{}") {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: malformed reference %q", label, ref))
			continue
		}
		if resolvable[trimmed] {
			continue
		}
		if !missing[trimmed] {
			missing[trimmed] = true
			report.MissingDependencies = append(report.MissingDependencies, trimmed)
		}
	}
}

// resolvableIdentifiers collects everything a reference may point at:
// document-level definitions, endpoint names and endpoint identities.
func resolvableIdentifiers(doc *domain.Document) map[string]bool {
	ids := make(map[string]bool, len(doc.Definitions)+2*len(doc.Endpoints))
	for _, def := range doc.Definitions {
		ids[def] = true
	}
	for _, ep := range doc.Endpoints {
		if ep.Name != "" {
			ids[ep.Name] = true
		}
		ids[ep.Identity()] = true
	}
	return ids
}

// pathPlaceholders extracts {name} placeholders from a URL template,
// ignoring {{reference}} expressions.
func pathPlaceholders(url string) []string {
	stripped := refExprPattern.ReplaceAllString(url, "")
	matches := placeholderPattern.FindAllStringSubmatch(stripped, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func endpointLabel(index int, ep domain.EndpointDef) string {
	if ep.Name != "" {
		return fmt.Sprintf("endpoint %q", ep.Name)
	}
	return fmt.Sprintf("endpoint %d", index+1)
}
