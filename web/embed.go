// Package web holds the browser-facing env-config template.
package web

import _ "embed"

// ExampleTemplate is env-config.example.js as shipped with the binary.
//
//go:embed env-config.example.js
var ExampleTemplate []byte

// ExampleTemplateName is the file name of the embedded template.
const ExampleTemplateName = "env-config.example.js"
