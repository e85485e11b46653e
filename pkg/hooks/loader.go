package hooks

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/datafetch/pkg/errors"
)

// FileExtension is the extension of hook scripts.
const FileExtension = ".tengo"

// LoadFromDir registers every <hook-type>.tengo file found in dir.
// Unknown names are ignored; a missing directory loads nothing.
func LoadFromDir(executor *TengoExecutor, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "failed to read hooks directory %s", dir)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != FileExtension {
			continue
		}

		hookType := HookType(strings.TrimSuffix(entry.Name(), FileExtension))
		if !hookType.Valid() {
			continue
		}

		hookPath := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(hookPath)
		if err != nil {
			return loaded, errors.Wrapf(err, "error reading hook file %s", hookPath)
		}

		if err := executor.AddHook(Hook{Type: hookType, Content: string(content)}); err != nil {
			return loaded, errors.Wrapf(err, "error adding hook %s", hookType)
		}
		loaded++
	}

	return loaded, nil
}
