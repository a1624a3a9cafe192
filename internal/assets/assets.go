// Package assets holds files compiled into the binary: the default fallback
// page template and the configuration schema.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed embedded_templates
var Templates embed.FS

//go:embed embedded_schemas
var Schemas embed.FS

// AssetInfo describes one embedded file.
type AssetInfo struct {
	Family string // template or schema
	Path   string // path inside its family's FS
}

// Registry lists embedded assets available at runtime.
// Update this when adding/removing assets.
var Registry = []AssetInfo{
	{Family: "template", Path: FallbackTemplate},
	{Family: "schema", Path: ConfigSchema},
}

const (
	// FallbackTemplate renders the SPA fallback page.
	FallbackTemplate = "fallback.html.hbs"
	// ConfigSchema validates crxprep configuration files.
	ConfigSchema = "crxprep-config.schema.json"
)

func GetTemplatesFS() fs.FS {
	if sub, err := fs.Sub(Templates, "embedded_templates"); err == nil {
		return sub
	}
	return Templates
}

func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(Schemas, "embedded_schemas"); err == nil {
		return sub
	}
	return Schemas
}

// GetTemplate returns an embedded template by name.
func GetTemplate(name string) ([]byte, bool) {
	data, err := fs.ReadFile(GetTemplatesFS(), name)
	return data, err == nil
}

// GetSchema returns an embedded schema by name.
func GetSchema(name string) ([]byte, bool) {
	data, err := fs.ReadFile(GetSchemasFS(), name)
	return data, err == nil
}
