package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/harrison/tern/internal/models"
)

// ErrUnknownEngine is returned when no engine file or builtin matches a name.
var ErrUnknownEngine = errors.New("unknown engine")

// Builtins returns the engines available without an engines directory.
func Builtins() map[string]Engine {
	return map[string]Engine{
		MarkdownEngineName: MarkdownEngine{},
	}
}

// DirLoader loads engines from Dir, falling back to Builtins.
type DirLoader struct {
	Dir      string
	Builtins map[string]Engine
}

// NewDirLoader creates a DirLoader over dir with the default builtins.
func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{Dir: dir, Builtins: Builtins()}
}

// Load resolves name: an executable file in Dir first, then a shell
// template, then a builtin.
func (l *DirLoader) Load(name string) (Engine, error) {
	if err := ValidateName(name); err != nil {
		return nil, models.NewFault(models.EngineFault, "load engine", name, err)
	}

	if l.Dir != "" {
		path := filepath.Join(l.Dir, name)
		info, err := os.Stat(path)
		switch {
		case err == nil && info.Mode().IsRegular():
			if info.Mode().Perm()&0111 == 0 {
				return nil, models.NewFault(models.EngineFault, "load engine", path,
					errors.New("engine file is not executable"))
			}
			return &ScriptEngine{Path: path}, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return nil, models.NewFault(models.EngineFault, "load engine", path, err)
		}

		tmplPath := path + TemplateSuffix
		data, err := os.ReadFile(tmplPath)
		switch {
		case err == nil:
			if strings.TrimSpace(string(data)) == "" {
				return nil, models.NewFault(models.EngineFault, "load engine", tmplPath,
					errors.New("empty template"))
			}
			return &ShellEngine{Template: string(data)}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, models.NewFault(models.EngineFault, "load engine", tmplPath, err)
		}
	}

	if eng, ok := l.Builtins[name]; ok {
		return eng, nil
	}

	return nil, models.NewFault(models.EngineFault, "load engine", name, ErrUnknownEngine)
}

// ValidateName rejects names that could escape the engines directory.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("engine name is empty")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("engine name %q must not contain a path", name)
	}
	return nil
}

// ListEngines returns the sorted names of the builtins and of every engine
// file in dir. A missing dir only yields the builtins.
func ListEngines(dir string) ([]string, error) {
	seen := make(map[string]bool)
	for name := range Builtins() {
		seen[name] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read engines directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		name = strings.TrimSuffix(name, TemplateSuffix)
		if name != "" {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
