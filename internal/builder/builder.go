// Package builder materializes a validated document into the domain
// graph: one collection owning a folder tree and its endpoints. The
// mapping is deterministic and never silently drops data.
package builder

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true, "TRACE": true,
}

// StubGenerator renders a client implementation for one endpoint.
// Implemented by the codegen package; optional.
type StubGenerator interface {
	Generate(collection string, ep domain.Endpoint) (string, error)
}

// Builder turns documents into collection graphs.
type Builder struct {
	stubs StubGenerator
}

// New creates a Builder. stubs may be nil to skip implementation
// generation.
func New(stubs StubGenerator) *Builder {
	return &Builder{stubs: stubs}
}

// Build maps the document onto a collection graph and returns exact
// counts of what was materialized. Endpoint order and sibling names are
// stable: colliding names get a numeric suffix within their parent
// scope so no two siblings share a name.
func (b *Builder) Build(doc *domain.Document, collectionID, collectionName string) (*domain.Collection, domain.GraphCounters, error) {
	if collectionName == "" {
		collectionName = doc.Name
	}
	col := &domain.Collection{
		ID:        collectionID,
		Name:      collectionName,
		CreatedAt: time.Now().UTC(),
	}

	folders := newFolderSet()
	endpointNames := make(map[string]*nameScope)

	for _, src := range doc.Endpoints {
		method := strings.ToUpper(src.Method)
		if !knownMethods[method] {
			return nil, domain.GraphCounters{}, &domain.TransformationError{
				Endpoint: src.Identity(),
				Reason:   fmt.Sprintf("unsupported HTTP method %q", src.Method),
			}
		}

		folderID, err := folders.ensure(src.GroupPath)
		if err != nil {
			return nil, domain.GraphCounters{}, &domain.TransformationError{
				Endpoint: src.Identity(),
				Reason:   err.Error(),
			}
		}

		scope, ok := endpointNames[folderID]
		if !ok {
			scope = newNameScope()
			endpointNames[folderID] = scope
		}

		ep := domain.Endpoint{
			ID:          uuid.New().String(),
			FolderID:    folderID,
			Name:        scope.unique(src.Name),
			Method:      method,
			URL:         src.URL,
			Description: src.Description,
			Position:    len(col.Endpoints),
		}

		for i, p := range src.Parameters {
			if !validLocation(p.Location) {
				return nil, domain.GraphCounters{}, &domain.TransformationError{
					Endpoint: src.Identity(),
					Reason:   fmt.Sprintf("unsupported parameter location %q for %q", p.Location, p.Name),
				}
			}
			ep.Parameters = append(ep.Parameters, domain.Parameter{
				Name:        p.Name,
				Location:    p.Location,
				Required:    p.Required,
				Example:     p.Example,
				Description: p.Description,
				Position:    i,
			})
		}
		for i, h := range src.Headers {
			ep.Headers = append(ep.Headers, domain.Header{
				Name:        h.Name,
				Value:       h.Value,
				Description: h.Description,
				Position:    i,
			})
		}
		for i, ex := range src.Examples {
			ep.Examples = append(ep.Examples, domain.ResponseExample{
				Name:       ex.Name,
				StatusCode: ex.StatusCode,
				MediaType:  ex.MediaType,
				Body:       ex.Body,
				Position:   i,
			})
		}

		col.Endpoints = append(col.Endpoints, ep)
	}

	col.Folders = folders.list()

	counters := domain.GraphCounters{
		EndpointsImported: len(col.Endpoints),
		FoldersCreated:    len(col.Folders),
	}

	if b.stubs != nil {
		for i := range col.Endpoints {
			stub, err := b.stubs.Generate(col.Name, col.Endpoints[i])
			if err != nil {
				return nil, domain.GraphCounters{}, &domain.TransformationError{
					Endpoint: col.Endpoints[i].Method + " " + col.Endpoints[i].URL,
					Reason:   fmt.Sprintf("stub generation failed: %v", err),
				}
			}
			col.Endpoints[i].Stub = stub
			counters.ImplementationsGenerated++
		}
	}

	return col, counters, nil
}

func validLocation(loc string) bool {
	switch loc {
	case "path", "query", "header", "body", "cookie":
		return true
	}
	return false
}

// folderSet materializes the folder tree lazily from group paths.
// Identical paths share one folder; sibling folders never share a name.
type folderSet struct {
	byPath  map[string]string // joined group path -> folder id
	names   map[string]*nameScope
	folders []domain.Folder
}

func newFolderSet() *folderSet {
	return &folderSet{
		byPath: make(map[string]string),
		names:  make(map[string]*nameScope),
	}
}

// ensure returns the folder id for the given group path, creating any
// missing ancestors. An empty path means the collection root.
func (f *folderSet) ensure(groupPath []string) (string, error) {
	parentID := ""
	joined := ""
	for _, name := range groupPath {
		if name == "" {
			return "", fmt.Errorf("empty folder name in group path %v", groupPath)
		}
		joined += "/" + name
		id, ok := f.byPath[joined]
		if !ok {
			scope, exists := f.names[parentID]
			if !exists {
				scope = newNameScope()
				f.names[parentID] = scope
			}
			id = uuid.New().String()
			f.byPath[joined] = id
			f.folders = append(f.folders, domain.Folder{
				ID:       id,
				ParentID: parentID,
				Name:     scope.unique(name),
				Position: len(f.folders),
			})
		}
		parentID = id
	}
	return parentID, nil
}

func (f *folderSet) list() []domain.Folder {
	return f.folders
}

// nameScope hands out unique names within one parent scope, suffixing
// collisions with -2, -3, and so on.
type nameScope struct {
	used map[string]bool
}

func newNameScope() *nameScope {
	return &nameScope{used: make(map[string]bool)}
}

func (s *nameScope) unique(name string) string {
	if name == "" {
		name = "untitled"
	}
	if !s.used[name] {
		s.used[name] = true
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if !s.used[candidate] {
			s.used[candidate] = true
			return candidate
		}
	}
}
