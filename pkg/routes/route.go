package routes

import "net/http"

// Route binds a method and a pattern relative to its group prefix to a handler.
// Summary is a one-line description used in the generated API document.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	Summary string
}
