package prompt

import (
	"fmt"
	"io/fs"
)

// Bundle is a loaded prompt directory plus a label used in error messages.
type Bundle struct {
	label   string
	prompts map[string]map[string]string
}

// LoadBundle loads the YAML prompts under dir.
func LoadBundle(fsys fs.FS, dir string, label string) (*Bundle, error) {
	loaded, err := LoadYAMLDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	return &Bundle{label: label, prompts: loaded}, nil
}

// Prompt returns the mapping of the named prompt file.
func (b *Bundle) Prompt(name string) (map[string]string, error) {
	if b == nil {
		return nil, fmt.Errorf("prompts not initialized")
	}
	return Get(b.prompts, name, b.label)
}

// Text returns field key of prompt name.
func (b *Bundle) Text(name string, key string) (string, error) {
	data, err := b.Prompt(name)
	if err != nil {
		return "", err
	}
	return Field(data, key, name+"."+key)
}

// Render formats field key of prompt name with values.
func (b *Bundle) Render(name string, key string, values map[string]string) (string, error) {
	template, err := b.Text(name, key)
	if err != nil {
		return "", err
	}
	rendered, err := FormatTemplate(template, values)
	if err != nil {
		return "", fmt.Errorf("format %s.%s: %w", name, key, err)
	}
	return rendered, nil
}
