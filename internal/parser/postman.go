package parser

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

// PostmanParser decodes Postman collection exports (v2.x schema).
type PostmanParser struct{}

// NewPostmanParser creates a parser for postman-json payloads.
func NewPostmanParser() *PostmanParser {
	return &PostmanParser{}
}

// Format returns the declared format this parser handles.
func (p *PostmanParser) Format() domain.Format {
	return domain.FormatPostmanJSON
}

type postmanCollection struct {
	Info     postmanInfo       `json:"info"`
	Item     []postmanItem     `json:"item"`
	Variable []postmanVariable `json:"variable"`
}

type postmanInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      string `json:"schema"`
}

type postmanVariable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type postmanItem struct {
	Name     string            `json:"name"`
	Item     []postmanItem     `json:"item"`
	Request  *postmanRequest   `json:"request"`
	Response []postmanResponse `json:"response"`
}

type postmanRequest struct {
	Method      string          `json:"method"`
	URL         postmanURL      `json:"url"`
	Header      []postmanHeader `json:"header"`
	Body        *postmanBody    `json:"body"`
	Description string          `json:"description"`
}

type postmanHeader struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

type postmanBody struct {
	Mode string `json:"mode"`
	Raw  string `json:"raw"`
}

type postmanResponse struct {
	Name   string          `json:"name"`
	Code   int             `json:"code"`
	Body   string          `json:"body"`
	Header []postmanHeader `json:"header"`
}

// postmanURL accepts both the string and the object form the export
// format allows.
type postmanURL struct {
	Raw      string
	Variable []postmanURLVariable
	Query    []postmanQueryParam
}

type postmanURLVariable struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

type postmanQueryParam struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (u *postmanURL) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		u.Raw = raw
		return nil
	}
	var obj struct {
		Raw      string               `json:"raw"`
		Variable []postmanURLVariable `json:"variable"`
		Query    []postmanQueryParam  `json:"query"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	u.Raw = obj.Raw
	u.Variable = obj.Variable
	u.Query = obj.Query
	return nil
}

// Parse decodes a Postman collection into the neutral model. Folder
// items become group paths; `:param` path segments are normalized into
// `{param}` templates so downstream validation is format-agnostic.
func (p *PostmanParser) Parse(payload []byte) (*domain.Document, error) {
	var src postmanCollection
	if err := json.Unmarshal(payload, &src); err != nil {
		return nil, &domain.MalformedDocumentError{Location: jsonLocation(err), Err: err}
	}
	if src.Info.Name == "" && len(src.Item) == 0 {
		return nil, &domain.MalformedDocumentError{
			Location: "$",
			Err:      errors.New("not a postman collection: missing info.name and item"),
		}
	}

	doc := &domain.Document{Name: src.Info.Name}
	if doc.Name == "" {
		doc.Name = "Imported Collection"
	}
	for _, v := range src.Variable {
		doc.Definitions = append(doc.Definitions, v.Key)
	}

	collectItems(doc, src.Item, nil)
	return doc, nil
}

func collectItems(doc *domain.Document, items []postmanItem, groupPath []string) {
	for _, item := range items {
		if len(item.Item) > 0 || item.Request == nil {
			nested := append(append([]string(nil), groupPath...), item.Name)
			collectItems(doc, item.Item, nested)
			continue
		}
		doc.Endpoints = append(doc.Endpoints, buildPostmanEndpoint(item, groupPath))
	}
}

func buildPostmanEndpoint(item postmanItem, groupPath []string) domain.EndpointDef {
	req := item.Request
	url := normalizePathVariables(req.URL.Raw)

	ep := domain.EndpointDef{
		Name:        item.Name,
		Method:      strings.ToUpper(req.Method),
		URL:         url,
		Description: req.Description,
		GroupPath:   append([]string(nil), groupPath...),
		Refs:        ExtractRefs(req.URL.Raw),
	}
	if ep.Name == "" {
		ep.Name = ep.Method + " " + url
	}

	for _, v := range req.URL.Variable {
		ep.Parameters = append(ep.Parameters, domain.ParameterDef{
			Name:        v.Key,
			Location:    "path",
			Required:    true,
			Example:     v.Value,
			Description: v.Description,
		})
	}
	for _, q := range req.URL.Query {
		ep.Parameters = append(ep.Parameters, domain.ParameterDef{
			Name:        q.Key,
			Location:    "query",
			Example:     q.Value,
			Description: q.Description,
		})
		ep.Refs = append(ep.Refs, ExtractRefs(q.Value)...)
	}
	for _, h := range req.Header {
		ep.Headers = append(ep.Headers, domain.HeaderDef{
			Name:        h.Key,
			Value:       h.Value,
			Description: h.Description,
		})
		ep.Refs = append(ep.Refs, ExtractRefs(h.Value)...)
	}
	if req.Body != nil && req.Body.Raw != "" {
		ep.Body = req.Body.Raw
		ep.Refs = append(ep.Refs, ExtractRefs(req.Body.Raw)...)
	}

	for _, resp := range item.Response {
		example := domain.ExampleDef{
			Name:       resp.Name,
			StatusCode: resp.Code,
			Body:       resp.Body,
		}
		for _, h := range resp.Header {
			if strings.EqualFold(h.Key, "Content-Type") {
				example.MediaType = h.Value
				break
			}
		}
		ep.Examples = append(ep.Examples, example)
	}

	return ep
}

// normalizePathVariables rewrites Postman :param segments into {param}
// templates. {{variable}} expressions are left untouched; they are
// references, not path parameters.
func normalizePathVariables(raw string) string {
	// Split off the query string so :port style hosts and query values
	// are not rewritten by accident.
	path := raw
	query := ""
	if idx := strings.Index(raw, "?"); idx >= 0 {
		path, query = raw[:idx], raw[idx:]
	}

	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if len(seg) > 1 && strings.HasPrefix(seg, ":") && i > 0 {
			segs[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segs, "/") + query
}
