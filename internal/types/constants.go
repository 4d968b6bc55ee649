package types

import (
	"strings"
)

const ContextUserKey = "user"

// Default allowed origins for development
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// BuildAllowedOrigins merges the development origins with the client URL and a comma separated list
func BuildAllowedOrigins(clientURL string, allowedOrigins string) []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowedOrigins != "" {
		for _, origin := range strings.Split(allowedOrigins, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
