// Package configs embeds the configuration template written by 'lawrag init'.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config (~/.config/lawrag/config.yaml)
//  3. Project config (.lawrag.yaml)
//  4. Environment variables (LAWRAG_*)
//
// Edit the .yaml file in this directory and rebuild to change the template.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .lawrag.yaml by 'lawrag init'.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
