// Package docs carries the static API contract served at /openapi.yaml.
// Embedding keeps the endpoint independent of the process working directory.
package docs

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
