package images

import (
	"os"
	"path/filepath"
	"sort"

	pkgerrors "github.com/pkg/errors"
)

func (r Recipe) checkExternal(files map[string]string) error {
	var missing []string
	for _, name := range r.External {
		if files[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return pkgerrors.Wrapf(ErrMissingAsset, "%s image needs %v", r.Name, missing)
	}
	return nil
}

// WriteContext writes the Dockerfile, the assets and the external files of r
// into dir. files maps the external file names to paths on disk.
func WriteContext(dir string, r Recipe, files map[string]string) error {
	if err := r.checkExternal(files); err != nil {
		return err
	}

	contents := map[string][]byte{"Dockerfile": r.Dockerfile}
	for name, data := range r.Assets {
		contents[name] = data
	}
	for _, name := range r.External {
		data, err := os.ReadFile(files[name])
		if err != nil {
			return pkgerrors.Wrapf(err, "unable to read %s", name)
		}
		contents[name] = data
	}

	for name, data := range contents {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return pkgerrors.Wrapf(err, "unable to write %s to build context", name)
		}
	}
	return nil
}
