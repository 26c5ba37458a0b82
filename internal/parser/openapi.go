package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

// methodOrder fixes the operation iteration order so parsing the same
// document always yields the same endpoint list.
var methodOrder = []string{"get", "post", "put", "patch", "delete", "head", "options"}

// OpenAPIParser decodes OpenAPI 3.x and Swagger 2.0 documents, in JSON
// or YAML depending on the format it was constructed with.
type OpenAPIParser struct {
	format domain.Format
}

// NewOpenAPIParser creates a parser for openapi-json or openapi-yaml.
func NewOpenAPIParser(format domain.Format) *OpenAPIParser {
	return &OpenAPIParser{format: format}
}

// Format returns the declared format this parser handles.
func (p *OpenAPIParser) Format() domain.Format {
	return p.format
}

type openapiDocument struct {
	OpenAPI     string                     `json:"openapi" yaml:"openapi"`
	Swagger     string                     `json:"swagger" yaml:"swagger"`
	Info        openapiInfo                `json:"info" yaml:"info"`
	Paths       map[string]openapiPathItem `json:"paths" yaml:"paths"`
	Components  openapiComponents          `json:"components" yaml:"components"`
	Definitions map[string]interface{}     `json:"definitions" yaml:"definitions"` // swagger 2.0
	Tags        []openapiTag               `json:"tags" yaml:"tags"`
}

type openapiInfo struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

type openapiTag struct {
	Name string `json:"name" yaml:"name"`
}

type openapiComponents struct {
	Schemas       map[string]interface{} `json:"schemas" yaml:"schemas"`
	Parameters    map[string]interface{} `json:"parameters" yaml:"parameters"`
	Responses     map[string]interface{} `json:"responses" yaml:"responses"`
	Examples      map[string]interface{} `json:"examples" yaml:"examples"`
	RequestBodies map[string]interface{} `json:"requestBodies" yaml:"requestBodies"`
}

type openapiPathItem struct {
	Get        *openapiOperation  `json:"get" yaml:"get"`
	Post       *openapiOperation  `json:"post" yaml:"post"`
	Put        *openapiOperation  `json:"put" yaml:"put"`
	Patch      *openapiOperation  `json:"patch" yaml:"patch"`
	Delete     *openapiOperation  `json:"delete" yaml:"delete"`
	Head       *openapiOperation  `json:"head" yaml:"head"`
	Options    *openapiOperation  `json:"options" yaml:"options"`
	Parameters []openapiParameter `json:"parameters" yaml:"parameters"`
}

func (pi openapiPathItem) operation(method string) *openapiOperation {
	switch method {
	case "get":
		return pi.Get
	case "post":
		return pi.Post
	case "put":
		return pi.Put
	case "patch":
		return pi.Patch
	case "delete":
		return pi.Delete
	case "head":
		return pi.Head
	case "options":
		return pi.Options
	}
	return nil
}

type openapiOperation struct {
	OperationID string                     `json:"operationId" yaml:"operationId"`
	Summary     string                     `json:"summary" yaml:"summary"`
	Description string                     `json:"description" yaml:"description"`
	Tags        []string                   `json:"tags" yaml:"tags"`
	Parameters  []openapiParameter         `json:"parameters" yaml:"parameters"`
	RequestBody *openapiRequestBody        `json:"requestBody" yaml:"requestBody"`
	Responses   map[string]openapiResponse `json:"responses" yaml:"responses"`
}

type openapiParameter struct {
	Ref         string         `json:"$ref" yaml:"$ref"`
	Name        string         `json:"name" yaml:"name"`
	In          string         `json:"in" yaml:"in"`
	Required    bool           `json:"required" yaml:"required"`
	Description string         `json:"description" yaml:"description"`
	Example     interface{}    `json:"example" yaml:"example"`
	Schema      *openapiSchema `json:"schema" yaml:"schema"`
}

type openapiSchema struct {
	Ref  string `json:"$ref" yaml:"$ref"`
	Type string `json:"type" yaml:"type"`
}

type openapiRequestBody struct {
	Ref     string                      `json:"$ref" yaml:"$ref"`
	Content map[string]openapiMediaType `json:"content" yaml:"content"`
}

type openapiMediaType struct {
	Schema  *openapiSchema `json:"schema" yaml:"schema"`
	Example interface{}    `json:"example" yaml:"example"`
}

type openapiResponse struct {
	Ref         string                      `json:"$ref" yaml:"$ref"`
	Description string                      `json:"description" yaml:"description"`
	Content     map[string]openapiMediaType `json:"content" yaml:"content"`
}

// Parse decodes an OpenAPI/Swagger payload into the neutral model.
func (p *OpenAPIParser) Parse(payload []byte) (*domain.Document, error) {
	var src openapiDocument
	if p.format == domain.FormatOpenAPIYAML {
		if err := yaml.Unmarshal(payload, &src); err != nil {
			return nil, &domain.MalformedDocumentError{Location: yamlLocation(err), Err: err}
		}
	} else {
		if err := json.Unmarshal(payload, &src); err != nil {
			return nil, &domain.MalformedDocumentError{Location: jsonLocation(err), Err: err}
		}
	}

	if src.OpenAPI == "" && src.Swagger == "" {
		return nil, &domain.MalformedDocumentError{
			Location: "$",
			Err:      errors.New("missing openapi/swagger version field"),
		}
	}

	doc := &domain.Document{
		Name:        src.Info.Title,
		Definitions: collectDefinitions(src),
	}
	if doc.Name == "" {
		doc.Name = "Imported API"
	}

	paths := make([]string, 0, len(src.Paths))
	for path := range src.Paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		item := src.Paths[path]
		for _, method := range methodOrder {
			op := item.operation(method)
			if op == nil {
				continue
			}
			doc.Endpoints = append(doc.Endpoints, buildEndpoint(path, method, op, item.Parameters))
		}
	}

	return doc, nil
}

// collectDefinitions lists every referenceable identifier the document
// declares, in canonical $ref form.
func collectDefinitions(src openapiDocument) []string {
	var defs []string
	add := func(prefix string, m map[string]interface{}) {
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			defs = append(defs, prefix+name)
		}
	}
	add("#/components/schemas/", src.Components.Schemas)
	add("#/components/parameters/", src.Components.Parameters)
	add("#/components/responses/", src.Components.Responses)
	add("#/components/examples/", src.Components.Examples)
	add("#/components/requestBodies/", src.Components.RequestBodies)
	add("#/definitions/", src.Definitions)
	return defs
}

func buildEndpoint(path, method string, op *openapiOperation, inherited []openapiParameter) domain.EndpointDef {
	ep := domain.EndpointDef{
		Name:        op.Summary,
		Method:      strings.ToUpper(method),
		URL:         path,
		Description: op.Description,
		GroupPath:   groupPath(path, op.Tags),
	}
	if ep.Name == "" {
		ep.Name = op.OperationID
	}
	if ep.Name == "" {
		ep.Name = ep.Method + " " + path
	}

	// Path-item parameters apply to every operation; operation-level
	// parameters with the same name and location override them.
	for _, param := range mergeParameters(inherited, op.Parameters) {
		if param.Ref != "" {
			ep.Refs = append(ep.Refs, param.Ref)
			continue
		}
		if param.Schema != nil && param.Schema.Ref != "" {
			ep.Refs = append(ep.Refs, param.Schema.Ref)
		}
		switch param.In {
		case "header":
			ep.Headers = append(ep.Headers, domain.HeaderDef{
				Name:        param.Name,
				Value:       exampleString(param.Example),
				Description: param.Description,
			})
		default:
			ep.Parameters = append(ep.Parameters, domain.ParameterDef{
				Name:        param.Name,
				Location:    paramLocation(param.In),
				Required:    param.Required || param.In == "path",
				Example:     exampleString(param.Example),
				Description: param.Description,
			})
		}
	}

	if op.RequestBody != nil {
		if op.RequestBody.Ref != "" {
			ep.Refs = append(ep.Refs, op.RequestBody.Ref)
		}
		for _, media := range op.RequestBody.Content {
			if media.Schema != nil && media.Schema.Ref != "" {
				ep.Refs = append(ep.Refs, media.Schema.Ref)
			}
			if media.Example != nil && ep.Body == "" {
				ep.Body = exampleString(media.Example)
			}
		}
	}

	codes := make([]string, 0, len(op.Responses))
	for code := range op.Responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		resp := op.Responses[code]
		if resp.Ref != "" {
			ep.Refs = append(ep.Refs, resp.Ref)
			continue
		}
		status, _ := strconv.Atoi(code)
		mediaTypes := make([]string, 0, len(resp.Content))
		for mt := range resp.Content {
			mediaTypes = append(mediaTypes, mt)
		}
		sort.Strings(mediaTypes)
		example := domain.ExampleDef{
			Name:       resp.Description,
			StatusCode: status,
		}
		if example.Name == "" {
			example.Name = code + " response"
		}
		for _, mt := range mediaTypes {
			media := resp.Content[mt]
			if media.Schema != nil && media.Schema.Ref != "" {
				ep.Refs = append(ep.Refs, media.Schema.Ref)
			}
			if media.Example != nil && example.Body == "" {
				example.MediaType = mt
				example.Body = exampleString(media.Example)
			}
		}
		ep.Examples = append(ep.Examples, example)
	}

	return ep
}

// mergeParameters overlays operation parameters on path-item ones.
func mergeParameters(inherited, own []openapiParameter) []openapiParameter {
	merged := make([]openapiParameter, 0, len(inherited)+len(own))
	overridden := func(p openapiParameter) bool {
		for _, o := range own {
			if o.Name == p.Name && o.In == p.In {
				return true
			}
		}
		return false
	}
	for _, p := range inherited {
		if !overridden(p) {
			merged = append(merged, p)
		}
	}
	return append(merged, own...)
}

// groupPath picks the endpoint's folder: the first tag when tagged,
// otherwise the first static path segment.
func groupPath(path string, tags []string) []string {
	if len(tags) > 0 && tags[0] != "" {
		return []string{tags[0]}
	}
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if seg != "" && !strings.HasPrefix(seg, "{") {
			return []string{seg}
		}
	}
	return nil
}

func paramLocation(in string) string {
	switch in {
	case "path", "query", "header", "body", "cookie":
		return in
	case "formData":
		return "body"
	default:
		return "query"
	}
}

// exampleString renders an example value as text, JSON-encoding
// anything that is not already a string.
func exampleString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

// jsonLocation derives a byte-offset hint from a JSON decode error.
func jsonLocation(err error) string {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return fmt.Sprintf("offset %d", syn.Offset)
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		return fmt.Sprintf("offset %d", typ.Offset)
	}
	return ""
}

// yamlLocation extracts the "line N" hint yaml.v3 embeds in its errors.
func yamlLocation(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, "line "); idx >= 0 {
		hint := msg[idx:]
		if end := strings.IndexAny(hint, ":,"); end > 0 {
			return hint[:end]
		}
		return hint
	}
	return ""
}
