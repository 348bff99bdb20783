// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time so project file validation works
// regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// ProjectConfigSchema is the embedded pspace.yaml JSON schema.
//
//go:embed project-config.schema.json
var ProjectConfigSchema []byte
