package prefabs

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DiskRoot is the directory checked for overrides before the embedded
// files. Edits there are picked up without rebuilding.
var DiskRoot = "prefabs"

var (
	//go:embed *.yaml
	specFiles embed.FS
	//go:embed scripts/*.tengo
	scriptFiles embed.FS
)

// tree is one kind of prefab file: the embedded copy and the directory it
// lives in below DiskRoot.
type tree struct {
	files embed.FS
	dir   string
}

var (
	specs   = tree{files: specFiles}
	scripts = tree{files: scriptFiles, dir: "scripts"}
)

// Load reads a body or scene file. A leading "prefabs/" is ignored.
func Load(name string) ([]byte, error) {
	return specs.read(name)
}

// LoadScript reads a tengo script. "usertag.tengo", "scripts/usertag.tengo"
// and "prefabs/scripts/usertag.tengo" name the same file.
func LoadScript(name string) ([]byte, error) {
	return scripts.read(name)
}

// ModTime reports the modification time of a disk override, if there is one.
func ModTime(name string) (time.Time, bool) {
	info, err := os.Stat(specs.disk(specs.rel(name)))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// rel maps a caller supplied name onto the slash separated path inside the
// embedded tree.
func (t tree) rel(name string) string {
	s := strings.TrimPrefix(filepath.ToSlash(name), "prefabs/")
	if t.dir == "" {
		return s
	}
	return path.Join(t.dir, strings.TrimPrefix(s, t.dir+"/"))
}

func (t tree) disk(rel string) string {
	return filepath.Join(DiskRoot, filepath.FromSlash(rel))
}

// read prefers the disk override. Only a missing override falls back to the
// embedded file; other disk errors are returned.
func (t tree) read(name string) ([]byte, error) {
	rel := t.rel(name)
	data, err := os.ReadFile(t.disk(rel))
	switch {
	case err == nil:
		return data, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	return t.files.ReadFile(rel)
}
