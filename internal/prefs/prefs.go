// Package prefs persists small per-user presentation preferences, separate
// from the cluster config.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	cwerrors "github.com/rileyhilliard/cw/internal/errors"
)

// Themes.
const (
	ThemeAuto  = "auto"
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Keys that can be set.
const (
	KeyTheme              = "theme"
	KeyRememberedUsername = "remembered_username"
)

// Prefs is the prefs.yaml document.
type Prefs struct {
	Theme              string `yaml:"theme" json:"theme"`
	RememberedUsername string `yaml:"remembered_username,omitempty" json:"remembered_username,omitempty"`
}

// Default returns the preferences used when no file exists.
func Default() Prefs {
	return Prefs{Theme: ThemeAuto}
}

// Keys lists the settable keys.
func Keys() []string {
	return []string{KeyTheme, KeyRememberedUsername}
}

// DefaultPath is ~/.config/cw/prefs.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Can't find your home directory", "Pass an explicit --prefs-file path")
	}
	return filepath.Join(home, ".config", "cw", "prefs.yaml"), nil
}

// Load reads path. A missing file yields Default.
func Load(path string) (Prefs, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Can't read "+path, "")
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Default(), cwerrors.WrapWithCode(err, cwerrors.ErrConfig,
			"Preferences file "+path+" isn't valid YAML", "Fix or delete the file")
	}
	if p.Theme == "" {
		p.Theme = ThemeAuto
	}
	if err := p.Validate(); err != nil {
		return Default(), err
	}
	return p, nil
}

// Validate checks field values.
func (p Prefs) Validate() error {
	switch p.Theme {
	case ThemeAuto, ThemeLight, ThemeDark:
		return nil
	}
	return cwerrors.New(cwerrors.ErrConfig,
		fmt.Sprintf("Unknown theme %q", p.Theme),
		"Use auto, light, or dark")
}

// Get returns the value of key.
func (p Prefs) Get(key string) (string, error) {
	switch key {
	case KeyTheme:
		return p.Theme, nil
	case KeyRememberedUsername:
		return p.RememberedUsername, nil
	}
	return "", unknownKey(key)
}

// Save writes p to path, creating parent directories.
func Save(path string, p Prefs) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Can't encode preferences", "")
	}
	_ = enc.Close()
	return write(path, buf.String())
}

// Set changes one key in the file at path, keeping the rest of the
// document (including comments) as it is.
func Set(path, key, value string) (Prefs, error) {
	p, err := Load(path)
	if err != nil {
		return p, err
	}
	switch key {
	case KeyTheme:
		p.Theme = strings.ToLower(strings.TrimSpace(value))
	case KeyRememberedUsername:
		p.RememberedUsername = strings.TrimSpace(value)
	default:
		return p, unknownKey(key)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, Save(path, p)
	}
	if err != nil {
		return p, cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Can't read "+path, "")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil || root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return p, Save(path, p)
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return p, Save(path, p)
	}

	newValue, _ := p.Get(key)
	if v := findMapValue(doc, key); v != nil {
		v.Kind = yaml.ScalarNode
		v.Tag = "!!str"
		v.Value = newValue
		v.Content = nil
	} else {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: newValue},
		)
	}

	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return p, cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Can't encode preferences", "")
	}
	_ = enc.Close()
	return p, write(path, buf.String())
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		if k := node.Content[i]; k.Kind == yaml.ScalarNode && k.Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func write(path, data string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Can't create "+filepath.Dir(path), "")
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return cwerrors.WrapWithCode(err, cwerrors.ErrConfig, "Can't write "+path, "")
	}
	return nil
}

func unknownKey(key string) error {
	return cwerrors.New(cwerrors.ErrConfig,
		fmt.Sprintf("Unknown preference %q", key),
		"Known keys: "+strings.Join(Keys(), ", "))
}
