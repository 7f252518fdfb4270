// Package openapi generates an OpenAPI 3.1 document from declared routes.
package openapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JaimeStill/mentor/pkg/routes"
)

// Spec represents an OpenAPI 3.1 specification document.
type Spec struct {
	OpenAPI    string               `json:"openapi"`
	Info       *Info                `json:"info"`
	Servers    []*Server            `json:"servers,omitempty"`
	Paths      map[string]*PathItem `json:"paths"`
	Components *Components          `json:"components,omitempty"`
}

// NewSpec creates a Spec described by cfg.
func NewSpec(cfg *Config, version string) *Spec {
	return &Spec{
		OpenAPI: "3.1.0",
		Info: &Info{
			Title:       cfg.Title,
			Version:     version,
			Description: cfg.Description,
		},
		Components: NewComponents(),
		Paths:      make(map[string]*PathItem),
	}
}

// AddServer appends a server URL to the spec.
func (s *Spec) AddServer(url string) {
	s.Servers = append(s.Servers, &Server{URL: url})
}

// AddRoutes documents every route of groups. Paths are relative to the
// spec's server, tags come from the first path segment and ServeMux
// wildcards become path parameters.
func (s *Spec) AddRoutes(groups ...routes.Group) {
	for _, e := range routes.Endpoints(groups...) {
		s.add(e)
	}
}

func (s *Spec) add(e routes.Endpoint) {
	path, params := convertPath(e.Path)

	op := &Operation{
		Summary:    e.Summary,
		Parameters: params,
		Responses: map[string]*Response{
			"200": {Description: "Success"},
			"400": ResponseRef("BadRequest"),
			"404": ResponseRef("NotFound"),
			"409": ResponseRef("Conflict"),
			"500": ResponseRef("InternalError"),
		},
	}
	if tag := firstSegment(path); tag != "" {
		op.Tags = []string{tag}
	}

	item, ok := s.Paths[path]
	if !ok {
		item = &PathItem{}
		s.Paths[path] = item
	}

	switch e.Method {
	case http.MethodGet:
		item.Get = op
	case http.MethodPost:
		item.Post = op
	case http.MethodPut:
		item.Put = op
	case http.MethodDelete:
		item.Delete = op
	}
}

// convertPath rewrites ServeMux wildcards ({key...}, {$}) to OpenAPI
// templates and returns the path parameters in order.
func convertPath(path string) (string, []*Parameter) {
	if path == "" {
		path = "/"
	}

	segments := strings.Split(path, "/")
	var params []*Parameter
	for i, seg := range segments {
		if seg == "{$}" {
			segments[i] = ""
			continue
		}
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}

		name := strings.TrimSuffix(strings.Trim(seg, "{}"), "...")
		schema := &Schema{Type: "string"}
		if name == "id" {
			schema.Format = "uuid"
		}
		params = append(params, &Parameter{Name: name, In: "path", Required: true, Schema: schema})
		segments[i] = "{" + name + "}"
	}
	return strings.Join(segments, "/"), params
}

func firstSegment(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	return parts[0]
}

// Handler serves the spec as indented JSON. The document is encoded once.
func Handler(spec *Spec) (http.HandlerFunc, error) {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}, nil
}
