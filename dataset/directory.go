// Package dataset - directory-backed image databases for the training
// target passes.
package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-roidb/roidb"
)

// Directory is an image database backed by a directory of frame files.
// It resolves image paths by frame order and carries one empty record
// per image for the caller to populate with overlap and ground-truth
// data before running the passes.
type Directory struct {
	dir     string
	paths   []string
	records []*roidb.Record
}

// Open scans dir for frame image files and builds a Directory database.
//
// Arguments:
// - dir: Directory path containing files named frame-<N>.<ext>.
//
// Returns:
//   - The database, with images sorted by frame number.
//   - error: Error if the directory cannot be read or a file name does not
//     carry a frame number.
func Open(dir string) (*Directory, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: reading %s", dir)
	}

	type entry struct {
		path  string
		frame int
	}
	var entries []entry
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		ext := filepath.Ext(file.Name())
		switch ext {
		case ".jpg", ".jpeg", ".png", ".bmp":
			frame, err := strconv.Atoi(strings.TrimSuffix(strings.ReplaceAll(file.Name(), "frame-", ""), ext))
			if err != nil {
				return nil, errors.Wrapf(err, "dataset: no frame number in %s", file.Name())
			}
			entries = append(entries, entry{
				path:  filepath.Join(dir, file.Name()),
				frame: frame,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].frame < entries[j].frame
	})

	d := &Directory{
		dir:     dir,
		paths:   make([]string, len(entries)),
		records: make([]*roidb.Record, len(entries)),
	}
	for i, e := range entries {
		d.paths[i] = e.path
		d.records[i] = &roidb.Record{}
	}
	return d, nil
}

// ImageCount returns the number of frame images found.
func (d *Directory) ImageCount() int {
	return len(d.paths)
}

// ImagePathAt resolves the path of the i-th frame image.
func (d *Directory) ImagePathAt(i int) string {
	return d.paths[i]
}

// Records returns the per-image record collection, in frame order. The
// caller populates each record's inputs before running the passes.
func (d *Directory) Records() []*roidb.Record {
	return d.records
}
