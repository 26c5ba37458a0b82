package domain

// Document is the format-neutral intermediate representation produced
// by the parsers. The validator and graph builder operate only on this
// model, independent of which source format produced it.
type Document struct {
	// Name is the document title, used as the default collection name.
	Name string `json:"name"`
	// Definitions lists identifiers the document declares and that
	// references inside endpoints may resolve against (OpenAPI
	// component names, Postman variables).
	Definitions []string `json:"definitions,omitempty"`
	// Endpoints is the flat list of endpoint descriptors. Grouping is
	// carried per endpoint so arbitrary source nesting survives.
	Endpoints []EndpointDef `json:"endpoints"`
}

// EndpointDef describes one endpoint of the source document.
type EndpointDef struct {
	Name        string         `json:"name"`
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	Description string         `json:"description,omitempty"`
	// GroupPath is the folder nesting the endpoint sits in, outermost
	// first. Empty means the endpoint lives at the collection root.
	GroupPath  []string       `json:"group_path,omitempty"`
	Parameters []ParameterDef `json:"parameters,omitempty"`
	Headers    []HeaderDef    `json:"headers,omitempty"`
	Body       string         `json:"body,omitempty"`
	Examples   []ExampleDef   `json:"examples,omitempty"`
	// Refs holds raw reference expressions found in the endpoint
	// (OpenAPI $ref values, {{variable}} expressions). The validator
	// resolves them against Definitions and endpoint names.
	Refs []string `json:"refs,omitempty"`
}

// Identity is the duplicate-detection key: method plus URL template.
func (e EndpointDef) Identity() string {
	return e.Method + " " + e.URL
}

// ParameterDef describes one declared parameter of an endpoint.
type ParameterDef struct {
	Name        string `json:"name"`
	Location    string `json:"location"` // path, query, header or body
	Required    bool   `json:"required"`
	Example     string `json:"example,omitempty"`
	Description string `json:"description,omitempty"`
}

// HeaderDef describes one request header of an endpoint.
type HeaderDef struct {
	Name        string `json:"name"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
}

// ExampleDef describes one example response declared by the document.
type ExampleDef struct {
	Name       string `json:"name"`
	StatusCode int    `json:"status_code"`
	MediaType  string `json:"media_type,omitempty"`
	Body       string `json:"body,omitempty"`
}
