// Package codegen renders client implementation stubs for imported
// endpoints. Generation is a pure post-step over the built graph; the
// stubs are stored alongside the endpoint and never executed here.
package codegen

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

var funcNamePattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

const clientStubTemplate = `// {{.FuncName}} calls {{.Method}} {{.URL}}.
// Generated from collection {{.Collection}}; adjust before use.
func {{.FuncName}}(ctx context.Context, client *http.Client, baseURL string{{range .PathParams}}, {{.Arg}} string{{end}}) (*http.Response, error) {
	url := baseURL + {{.URLExpr}}
	req, err := http.NewRequestWithContext(ctx, {{.MethodConst}}, url, nil)
	if err != nil {
		return nil, err
	}
{{- range .Headers}}
	req.Header.Set({{printf "%q" .Name}}, {{printf "%q" .Value}})
{{- end}}
	return client.Do(req)
}
`

type stubData struct {
	FuncName    string
	Collection  string
	Method      string
	MethodConst string
	URL         string
	URLExpr     string
	PathParams  []stubParam
	Headers     []domain.Header
}

type stubParam struct {
	Name string
	Arg  string
}

// ClientStubGenerator renders Go net/http client functions.
type ClientStubGenerator struct {
	tmpl *template.Template
}

// NewClientStubGenerator creates a generator with the built-in template.
func NewClientStubGenerator() *ClientStubGenerator {
	return &ClientStubGenerator{
		tmpl: template.Must(template.New("stub").Parse(clientStubTemplate)),
	}
}

// Generate renders the stub for one endpoint.
func (g *ClientStubGenerator) Generate(collection string, ep domain.Endpoint) (string, error) {
	data := stubData{
		FuncName:    funcName(ep),
		Collection:  collection,
		Method:      ep.Method,
		MethodConst: methodConst(ep.Method),
		URL:         ep.URL,
	}

	for _, p := range ep.Parameters {
		if p.Location == "path" {
			data.PathParams = append(data.PathParams, stubParam{
				Name: p.Name,
				Arg:  argName(p.Name),
			})
		}
	}
	data.URLExpr = urlExpr(ep.URL, data.PathParams)

	for _, h := range ep.Headers {
		if h.Value != "" {
			data.Headers = append(data.Headers, h)
		}
	}

	var sb strings.Builder
	if err := g.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render stub for %s %s: %w", ep.Method, ep.URL, err)
	}
	return sb.String(), nil
}

// urlExpr builds the Go expression for the request URL, substituting
// {param} placeholders with the matching function arguments.
func urlExpr(url string, params []stubParam) string {
	expr := fmt.Sprintf("%q", url)
	for _, p := range params {
		expr = strings.ReplaceAll(expr, "{"+p.Name+"}", `" + `+p.Arg+` + "`)
	}
	// Collapse empty string concatenations at the edges.
	expr = strings.TrimPrefix(expr, `"" + `)
	expr = strings.TrimSuffix(expr, ` + ""`)
	return expr
}

func funcName(ep domain.Endpoint) string {
	base := ep.Name
	if base == "" {
		base = ep.Method + " " + ep.URL
	}
	parts := funcNamePattern.Split(base, -1)
	var sb strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		if len(part) > 1 {
			sb.WriteString(part[1:])
		}
	}
	if sb.Len() == 0 {
		return "CallEndpoint"
	}
	return sb.String()
}

func argName(name string) string {
	cleaned := funcNamePattern.ReplaceAllString(name, "")
	if cleaned == "" {
		return "param"
	}
	return strings.ToLower(cleaned[:1]) + cleaned[1:]
}

func methodConst(method string) string {
	switch method {
	case "GET":
		return "http.MethodGet"
	case "POST":
		return "http.MethodPost"
	case "PUT":
		return "http.MethodPut"
	case "PATCH":
		return "http.MethodPatch"
	case "DELETE":
		return "http.MethodDelete"
	case "HEAD":
		return "http.MethodHead"
	case "OPTIONS":
		return "http.MethodOptions"
	default:
		return fmt.Sprintf("%q", method)
	}
}
