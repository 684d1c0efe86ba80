package view

import (
	"embed"
	"io/fs"
)

//go:embed templates
var embedded embed.FS

// Templates returns the built-in templates rooted at the templates directory.
func Templates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
