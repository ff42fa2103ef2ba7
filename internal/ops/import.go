package ops

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/sadopc/treecache/internal/model"
)

type snapshot struct {
	snapshotHeader
	Elements []snapshotElement `json:"elements"`
}

// ImportJSON reads a snapshot written by ExportJSON.
func ImportJSON(path string) (*model.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open import file: %w", err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// ReadJSON decodes a snapshot and rebuilds the result it describes.
func ReadJSON(r io.Reader) (*model.Result, error) {
	var snap snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if snap.Progname != progname {
		return nil, fmt.Errorf("not a %s snapshot (progname %q)", progname, snap.Progname)
	}

	b := model.NewBuilder(snap.Root)
	for i, e := range snap.Elements {
		if e.RelPath == "" {
			return nil, fmt.Errorf("element %d: missing relative path", i)
		}
		var kind model.Kind
		switch e.Kind {
		case "file":
			kind = model.KindFile
		case "dir":
			kind = model.KindDir
		default:
			return nil, fmt.Errorf("element %d (%s): unknown kind %q", i, e.RelPath, e.Kind)
		}
		b.Add(model.Element{
			Path:    e.Path,
			RelPath: e.RelPath,
			Kind:    kind,
			Size:    e.Size,
			ModTime: e.ModTime,
			Mode:    fs.FileMode(e.Mode),
		})
	}
	return b.Build(), nil
}
