// Package configs provides embedded configuration templates for catalogsearch.
//
// Templates are embedded at build time so `catalogsearch config init` works
// from any distribution. Precedence when loading (see internal/config Load):
//
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config (~/.config/catalogsearch/config.yaml)
//  3. Project config (.catalogsearch.yaml)
//  4. Environment variables (CATALOGSEARCH_*)
package configs

import _ "embed"

// UserConfigTemplate is written by `catalogsearch config init --user`.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written by `catalogsearch config init` into the
// project directory as .catalogsearch.yaml.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
