package config

import (
	"fmt"

	"github.com/JaimeStill/mentor/pkg/envconf"
	"github.com/JaimeStill/mentor/pkg/middleware"
	"github.com/JaimeStill/mentor/pkg/openapi"
	"github.com/JaimeStill/mentor/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "MENTOR_CORS_ENABLED",
	Origins:          "MENTOR_CORS_ORIGINS",
	AllowedMethods:   "MENTOR_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "MENTOR_CORS_ALLOWED_HEADERS",
	AllowCredentials: "MENTOR_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "MENTOR_CORS_MAX_AGE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "MENTOR_OPENAPI_TITLE",
	Description: "MENTOR_OPENAPI_DESCRIPTION",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "MENTOR_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "MENTOR_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, and pagination settings.
type APIConfig struct {
	BasePath   string                `toml:"base_path"`
	SocketPath string                `toml:"socket_path"`
	CORS       middleware.CORSConfig `toml:"cors"`
	Pagination pagination.Config     `toml:"pagination"`
	OpenAPI    openapi.Config        `toml:"openapi"`
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.SocketPath == "" {
		c.SocketPath = "/ws"
	}
	envconf.String(&c.BasePath, "MENTOR_API_BASE_PATH")
	envconf.String(&c.SocketPath, "MENTOR_API_SOCKET_PATH")

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	envconf.Merge(&c.BasePath, overlay.BasePath)
	envconf.Merge(&c.SocketPath, overlay.SocketPath)
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}
