// Package logging configures log/slog for assetcache.
//
// Without --debug the CLI logs text to stderr at the configured level. With
// --debug, JSON records are also written to ~/.assetcache/logs/assetcache.log
// through a size-rotating writer.
package logging
