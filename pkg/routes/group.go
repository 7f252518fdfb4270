// Package routes declares HTTP routes as data and registers them on a ServeMux.
package routes

import "net/http"

// Group is a set of routes sharing a path prefix. Children inherit the prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Endpoint is a route with its prefix resolved.
type Endpoint struct {
	Method  string
	Path    string
	Summary string
}

// Register adds every route of groups to mux using method-qualified patterns.
func Register(mux *http.ServeMux, groups ...Group) {
	walk("", groups, func(path string, r Route) {
		mux.HandleFunc(r.Method+" "+path, r.Handler)
	})
}

// Patterns lists the method-qualified patterns Register would add.
func Patterns(groups ...Group) []string {
	var out []string
	walk("", groups, func(path string, r Route) {
		out = append(out, r.Method+" "+path)
	})
	return out
}

// Endpoints lists every route of groups with its full path.
func Endpoints(groups ...Group) []Endpoint {
	var out []Endpoint
	walk("", groups, func(path string, r Route) {
		out = append(out, Endpoint{Method: r.Method, Path: path, Summary: r.Summary})
	})
	return out
}

func walk(parent string, groups []Group, fn func(string, Route)) {
	for _, g := range groups {
		prefix := parent + g.Prefix
		for _, r := range g.Routes {
			fn(prefix+r.Pattern, r)
		}
		walk(prefix, g.Children, fn)
	}
}
