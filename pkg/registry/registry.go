// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadCatalog reads a catalog file. .json files are decoded as JSON, everything else as YAML.
func LoadCatalog(path string) (*QueryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

func ParseCatalog(data []byte, isJSON bool) (*QueryCatalog, error) {
	var cat QueryCatalog
	var err error
	if isJSON {
		err = json.Unmarshal(data, &cat)
	} else {
		err = yaml.Unmarshal(data, &cat)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &cat, nil
}

// SaveCatalog writes the catalog as YAML.
func SaveCatalog(path string, cat *QueryCatalog) error {
	data, err := yaml.Marshal(cat)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
