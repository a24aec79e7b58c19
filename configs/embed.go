// Package configs embeds the configuration templates written by
// `meilihook config init`.
package configs

import _ "embed"

// UserConfigTemplate is written to $XDG_CONFIG_HOME/meilihook/config.yaml.
//
//go:embed config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written to .meilihook.yaml with --project.
//
//go:embed project.example.yaml
var ProjectConfigTemplate string
