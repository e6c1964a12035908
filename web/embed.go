// Package web holds the static assets served by the HTTP server.
package web

import (
	_ "embed"
)

// IndexHTML is the submission form page.
//
//go:embed dist/index.html
var IndexHTML []byte
