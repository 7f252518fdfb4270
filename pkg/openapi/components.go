package openapi

func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Content: map[string]*MediaType{
			"application/json": {
				Schema: &Schema{
					Type: "object",
					Properties: map[string]*Schema{
						"error": {Type: "string", Description: "Error message"},
					},
				},
			},
		},
	}
}

// NewComponents creates Components with the shared error responses every
// handler may return.
func NewComponents() *Components {
	return &Components{
		Responses: map[string]*Response{
			"BadRequest":    errorResponse("Invalid identifier or request body"),
			"NotFound":      errorResponse("Resource not found"),
			"Conflict":      errorResponse("Session not live, busy, or already in the requested state"),
			"InternalError": errorResponse("Unexpected failure"),
		},
	}
}
