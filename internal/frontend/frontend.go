// Package frontend implements the ways profiles get into the store: an
// interactive prompt, a static list from flags or a YAML file, and a
// read-only lister.
package frontend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harrison/tern/internal/models"
)

// profileFile is the YAML layout accepted by LoadProfiles.
type profileFile struct {
	Profiles []models.Profile `yaml:"profiles"`
}

// LoadProfiles reads profiles from a YAML file holding either a top-level
// list or a "profiles:" key.
func LoadProfiles(path string) ([]models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var list []models.Profile
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc profileFile
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("failed to parse profile file %s: %w", path, err2)
		}
		list = doc.Profiles
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("no profiles in %s", path)
	}

	for i := range list {
		normalized, err := Normalize(list[i])
		if err != nil {
			return nil, fmt.Errorf("profile %d in %s: %w", i+1, path, err)
		}
		list[i] = normalized
	}
	return list, nil
}

// Normalize trims user input, makes both roots absolute and drops a leading
// '.' from the extensions.
func Normalize(p models.Profile) (models.Profile, error) {
	p.Engine = strings.TrimSpace(p.Engine)
	p.SourceFileExtension = strings.TrimPrefix(strings.TrimSpace(p.SourceFileExtension), ".")
	p.OutputFileExtension = strings.TrimPrefix(strings.TrimSpace(p.OutputFileExtension), ".")

	for _, root := range []*string{&p.SourceRoot, &p.OutputRoot} {
		trimmed := strings.TrimSpace(*root)
		if trimmed == "" {
			continue
		}
		abs, err := filepath.Abs(expandHome(trimmed))
		if err != nil {
			return p, fmt.Errorf("failed to resolve %s: %w", trimmed, err)
		}
		*root = abs
	}

	p.Options = compact(p.Options)
	p.IgnorePatterns = compact(p.IgnorePatterns)
	return p, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// compact drops blank entries; an all-blank list becomes nil.
func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
