// Package configs embeds configuration templates for assetcache.
//
// The template backs `assetcache config init`, which writes it to
// ~/.config/assetcache/config.yaml. Precedence at load time is defined by
// internal/config.Load.
package configs

import _ "embed"

// UserConfigTemplate is the commented template for the user configuration.
//
//go:embed config.example.yaml
var UserConfigTemplate string
