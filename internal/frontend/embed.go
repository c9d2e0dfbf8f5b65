package frontend

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var assetsFS embed.FS

// TemplatesFS returns the embedded HTML templates.
func TemplatesFS() fs.FS {
	sub, err := fs.Sub(assetsFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// StaticFS returns the embedded stylesheet and scripts.
func StaticFS() fs.FS {
	sub, err := fs.Sub(assetsFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
