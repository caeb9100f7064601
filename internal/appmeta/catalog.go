package appmeta

import (
	"fmt"
	"os"

	"github.com/goodtune/screenguard/internal/usage"
	"gopkg.in/yaml.v3"
)

// Override replaces what the device reports for one package. Empty fields
// fall through to the device.
type Override struct {
	Name     string         `yaml:"name"`
	Category usage.Category `yaml:"category"`
}

// Catalog maps package identifiers to overrides.
type Catalog map[string]Override

type catalogFile struct {
	Apps Catalog `yaml:"apps"`
}

var validCategories = map[usage.Category]bool{
	usage.CategoryGames:        true,
	usage.CategoryMedia:        true,
	usage.CategorySocial:       true,
	usage.CategoryProductivity: true,
	usage.CategorySystem:       true,
	usage.CategoryOther:        true,
}

// LoadCatalog reads an overrides file of the form
//
//	apps:
//	  com.example.game:
//	    name: Example Game
//	    category: Games
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read app catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse app catalog %s: %w", path, err)
	}

	for pkg, o := range file.Apps {
		if o.Category != "" && !validCategories[o.Category] {
			return nil, fmt.Errorf("app catalog %s: unknown category %q for %s", path, o.Category, pkg)
		}
	}

	if file.Apps == nil {
		return Catalog{}, nil
	}
	return file.Apps, nil
}
