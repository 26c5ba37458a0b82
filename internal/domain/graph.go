package domain

import "time"

// Collection is the root of a generated domain graph. Ownership is
// strictly top-down: the collection owns its folders and endpoints;
// folders own nothing and are referenced by endpoints.
type Collection struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Folders   []Folder   `json:"folders,omitempty"`
	Endpoints []Endpoint `json:"endpoints,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Folder is one node of the collection's folder tree. The tree is kept
// flat with parent references; ParentID is empty for top-level folders.
type Folder struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Endpoint is one imported endpoint. FolderID is empty when the
// endpoint lives directly under the collection.
type Endpoint struct {
	ID          string            `json:"id"`
	FolderID    string            `json:"folder_id,omitempty"`
	Name        string            `json:"name"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Description string            `json:"description,omitempty"`
	Parameters  []Parameter       `json:"parameters,omitempty"`
	Headers     []Header          `json:"headers,omitempty"`
	Examples    []ResponseExample `json:"examples,omitempty"`
	// Stub is the generated client implementation, if stub generation
	// ran for this import.
	Stub     string `json:"stub,omitempty"`
	Position int    `json:"position"`
}

// Parameter is an ordered endpoint parameter.
type Parameter struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Required    bool   `json:"required"`
	Example     string `json:"example,omitempty"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
}

// Header is an ordered endpoint request header.
type Header struct {
	Name        string `json:"name"`
	Value       string `json:"value,omitempty"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
}

// ResponseExample is an ordered example response of an endpoint.
type ResponseExample struct {
	Name       string `json:"name"`
	StatusCode int    `json:"status_code"`
	MediaType  string `json:"media_type,omitempty"`
	Body       string `json:"body,omitempty"`
	Position   int    `json:"position"`
}

// GraphCounters reports exactly what a build materialized.
type GraphCounters struct {
	EndpointsImported        int `json:"endpoints_imported"`
	FoldersCreated           int `json:"folders_created"`
	ImplementationsGenerated int `json:"implementations_generated"`
}
