package assets

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"testing"
)

func TestGetTemplatesFS(t *testing.T) {
	data, err := fs.ReadFile(GetTemplatesFS(), FallbackTemplate)
	if err != nil {
		t.Fatalf("Failed to read fallback template: %v", err)
	}
	for _, want := range []string{"{{title}}", "{{appDir}}", "<script type=\"module\">"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("fallback template missing %q", want)
		}
	}
}

func TestConfigSchemaIsJSON(t *testing.T) {
	data, ok := GetSchema(ConfigSchema)
	if !ok {
		t.Fatal("config schema not embedded")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("config schema is not valid JSON: %v", err)
	}
	if doc["type"] != "object" {
		t.Errorf("schema root type = %v", doc["type"])
	}
}

func TestRegistryEntriesResolve(t *testing.T) {
	for _, a := range Registry {
		var ok bool
		switch a.Family {
		case "template":
			_, ok = GetTemplate(a.Path)
		case "schema":
			_, ok = GetSchema(a.Path)
		}
		if !ok {
			t.Errorf("registry entry %s/%s is not embedded", a.Family, a.Path)
		}
	}
}

func TestMissingAsset(t *testing.T) {
	if _, ok := GetTemplate("nope.hbs"); ok {
		t.Error("GetTemplate should miss unknown names")
	}
}
