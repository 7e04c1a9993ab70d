// Package schemas embeds the JSON Schemas shipped with linkscan.
package schemas

import _ "embed"

// Config is the JSON Schema for configuration files.
//
//go:embed config.schema.json
var Config string
