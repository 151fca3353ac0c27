// Package assets bundles the release artifacts into the binary. The bundled
// copies are the last fallback of the release verifier; they are hashed like
// any on-disk artifact before use.
package assets

import (
	"embed"
	"io/fs"
)

// Artifact keys and the manifest file name shipped with this release.
const (
	ManifestName = "microinx_manifest_v1.json"
	TemplatesKey = "templates_v0_3.json"
	RulesKey     = "rules_v1.yaml"
)

//go:embed data/*
var bundled embed.FS

// FS returns the bundled artifacts rooted at the data directory.
func FS() fs.FS {
	sub, err := fs.Sub(bundled, "data")
	if err != nil {
		// fs.Sub only fails on an invalid path literal.
		panic(err)
	}
	return sub
}
