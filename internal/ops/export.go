package ops

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sadopc/treecache/internal/model"
)

// Snapshot JSON format, one element per line:
// {"progname":"treecache","progver":"1.0","timestamp":1700000000,"root":"/src","elements":[
// {"path":"/src/a.txt","rel":"a.txt","kind":"file","size":1,"mtime":"...","mode":420},
// {"path":"/src/b","rel":"b","kind":"dir","size":0,"mtime":"...","mode":2147484141}
// ]}

const progname = "treecache"

type snapshotHeader struct {
	Progname  string `json:"progname"`
	Progver   string `json:"progver"`
	Timestamp int64  `json:"timestamp"`
	Root      string `json:"root"`
}

type snapshotElement struct {
	Path    string    `json:"path"`
	RelPath string    `json:"rel"`
	Kind    string    `json:"kind"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
	Mode    uint32    `json:"mode"`
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, avoiding verbose per-call checks.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) WriteString(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (ew *errWriter) WriteJSON(v any) {
	if ew.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		ew.err = err
		return
	}
	_, ew.err = ew.w.Write(data)
}

// ExportJSON writes a walk result as a JSON snapshot. "-" writes to stdout.
// Files are written to a temp file first and renamed on success, so a
// partial file is never left behind on error.
func ExportJSON(res *model.Result, path string, version string) (retErr error) {
	if res == nil {
		return errors.New("nothing to export")
	}
	if path == "-" {
		return WriteJSON(res, os.Stdout, version)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".treecache-export-*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create export file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := WriteJSON(res, tmp, version); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		// On Windows, Rename cannot replace an existing destination.
		if runtime.GOOS != "windows" {
			return err
		}
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("cannot replace export file %s: %w", path, err)
		}
		return os.Rename(tmpPath, path)
	}
	return nil
}

// WriteJSON streams res to out in snapshot format.
func WriteJSON(res *model.Result, out io.Writer, version string) error {
	if version == "" {
		version = "dev"
	}
	bw := bufio.NewWriterSize(out, 64*1024)
	ew := &errWriter{w: bw}

	header, err := json.Marshal(snapshotHeader{
		Progname:  progname,
		Progver:   version,
		Timestamp: time.Now().Unix(),
		Root:      res.Root(),
	})
	if err != nil {
		return err
	}
	// Reopen the header object to append the element list.
	ew.WriteString(string(header[:len(header)-1]))
	ew.WriteString(`,"elements":[`)
	for i, e := range res.All() {
		if i > 0 {
			ew.WriteString(",")
		}
		ew.WriteString("\n")
		ew.WriteJSON(snapshotElement{
			Path:    e.Path,
			RelPath: e.RelPath,
			Kind:    e.Kind.String(),
			Size:    e.Size,
			ModTime: e.ModTime,
			Mode:    uint32(e.Mode),
		})
	}
	ew.WriteString("\n]}\n")
	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}
