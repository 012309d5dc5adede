// Package main provides the entry point for the assetcache CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/assetcache/cmd/assetcache/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
