package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrRalph1/API-AUTOMATION-sub006/internal/domain"
)

func validDoc() *domain.Document {
	return &domain.Document{
		Name:        "Petstore",
		Definitions: []string{"#/components/schemas/Pet", "base_url"},
		Endpoints: []domain.EndpointDef{
			{
				Name:   "List pets",
				Method: "GET",
				URL:    "/pets",
			},
			{
				Name:   "Get pet",
				Method: "GET",
				URL:    "/pets/{petId}",
				Parameters: []domain.ParameterDef{
					{Name: "petId", Location: "path", Required: true},
				},
				Refs: []string{"#/components/schemas/Pet"},
			},
		},
	}
}

func TestValidateCleanDocument(t *testing.T) {
	v := NewValidator()
	report := v.Validate(validDoc())

	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
	assert.Empty(t, report.MissingDependencies)
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	doc := &domain.Document{
		Endpoints: []domain.EndpointDef{
			{Name: "no method", URL: "/a"},
			{Name: "no url", Method: "GET"},
			{Name: "undeclared param", Method: "GET", URL: "/b/{id}"},
		},
	}

	v := NewValidator()
	report := v.Validate(doc)

	assert.False(t, report.Valid)
	require.Len(t, report.Errors, 3, "every problem must be reported, got %v", report.Errors)
	assert.Contains(t, report.Errors[0], "method is required")
	assert.Contains(t, report.Errors[1], "url template is required")
	assert.Contains(t, report.Errors[2], "path parameter {id} is referenced but not declared")
}

func TestValidatePathParameters(t *testing.T) {
	v := NewValidator()

	t.Run("undeclared placeholder is an error", func(t *testing.T) {
		report := v.Validate(&domain.Document{Endpoints: []domain.EndpointDef{
			{Name: "e", Method: "GET", URL: "/users/{id}"},
		}})
		assert.False(t, report.Valid)
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "{id}")
	})

	t.Run("doubly declared placeholder is an error", func(t *testing.T) {
		report := v.Validate(&domain.Document{Endpoints: []domain.EndpointDef{
			{
				Name: "e", Method: "GET", URL: "/users/{id}",
				Parameters: []domain.ParameterDef{
					{Name: "id", Location: "path"},
					{Name: "id", Location: "path"},
				},
			},
		}})
		assert.False(t, report.Valid)
		require.Len(t, report.Errors, 1)
		assert.Contains(t, report.Errors[0], "declared 2 times")
	})

	t.Run("unreferenced declaration is only a warning", func(t *testing.T) {
		report := v.Validate(&domain.Document{Endpoints: []domain.EndpointDef{
			{
				Name: "e", Method: "GET", URL: "/users",
				Parameters: []domain.ParameterDef{
					{Name: "id", Location: "path"},
				},
			},
		}})
		assert.True(t, report.Valid, "warnings must not fail validation")
		require.Len(t, report.Warnings, 1)
		assert.Contains(t, report.Warnings[0], `"id"`)
	})

	t.Run("reference expressions are not placeholders", func(t *testing.T) {
		report := v.Validate(&domain.Document{
			Definitions: []string{"base_url"},
			Endpoints: []domain.EndpointDef{
				{Name: "e", Method: "GET", URL: "{{base_url}}/users", Refs: []string{"base_url"}},
			},
		})
		assert.True(t, report.Valid, "got %v", report.Errors)
	})
}

func TestValidateReferences(t *testing.T) {
	v := NewValidator()

	t.Run("unresolved references are missing dependencies", func(t *testing.T) {
		report := v.Validate(&domain.Document{Endpoints: []domain.EndpointDef{
			{Name: "a", Method: "GET", URL: "/a", Refs: []string{"ghost", "ghost"}},
			{Name: "b", Method: "GET", URL: "/b", Refs: []string{"ghost"}},
		}})
		assert.True(t, report.Valid, "missing dependencies must not fail validation")
		assert.Equal(t, []string{"ghost"}, report.MissingDependencies, "missing deps are deduplicated")
	})

	t.Run("references resolve against endpoint names and identities", func(t *testing.T) {
		report := v.Validate(&domain.Document{Endpoints: []domain.EndpointDef{
			{Name: "login", Method: "POST", URL: "/login"},
			{Name: "profile", Method: "GET", URL: "/me", Refs: []string{"login", "POST /login"}},
		}})
		assert.True(t, report.Valid)
		assert.Empty(t, report.MissingDependencies)
	})

	t.Run("malformed reference syntax is a hard error", func(t *testing.T) {
		report := v.Validate(&domain.Document{Endpoints: []domain.EndpointDef{
			{Name: "e", Method: "GET", URL: "/x", Refs: []string{"", "{{oops"}},
		}})
		assert.False(t, report.Valid)
		require.Len(t, report.Errors, 2)
		assert.Contains(t, report.Errors[0], "malformed reference")
		assert.Contains(t, report.Errors[1], "malformed reference")
		assert.Empty(t, report.MissingDependencies)
	})
}

func TestValidateDuplicateEndpoints(t *testing.T) {
	v := NewValidator()
	report := v.Validate(&domain.Document{Endpoints: []domain.EndpointDef{
		{Name: "first", Method: "GET", URL: "/users"},
		{Name: "second", Method: "GET", URL: "/users"},
		{Name: "third", Method: "POST", URL: "/users"},
	}})

	assert.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "duplicate endpoint GET /users")
}

func TestValidateIsIdempotent(t *testing.T) {
	doc := &domain.Document{Endpoints: []domain.EndpointDef{
		{Name: "broken", URL: "/x/{id}", Refs: []string{"ghost"}},
		{Name: "broken2", URL: "/x/{id}", Refs: []string{"ghost"}},
	}}

	v := NewValidator()
	first := v.Validate(doc)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, v.Validate(doc))
	}
}

func TestValidateUnnamedEndpointLabel(t *testing.T) {
	v := NewValidator()
	report := v.Validate(&domain.Document{Endpoints: []domain.EndpointDef{
		{Method: "", URL: "/x"},
	}})
	assert.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "endpoint 1", "unnamed endpoints are labeled by position")
}
