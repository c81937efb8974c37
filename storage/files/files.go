package files

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

// Media subdirectories
const (
	PicturesDir    = "pictures"
	AssignmentsDir = "assignments"
	AnswersDir     = "answers"
	ScoresDir      = "scores"
)

// Storage saves uploaded files under the configured media root.
type Storage struct {
	root string
}

func NewStorage(conf *core.Config) *Storage {
	return &Storage{root: conf.MediaRoot}
}

// Save writes the uploaded file under subdir with a uuid-prefixed name and
// returns the path relative to the media root.
func (s *Storage) Save(fh *multipart.FileHeader, subdir string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = src.Close() }()

	dir := filepath.Join(s.root, subdir)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating media dir")
	}

	name := uuid.New().String() + "-" + sanitizeFilename(fh.Filename)
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", errors.Wrap(err, "creating media file")
	}
	defer func() { _ = dst.Close() }()

	if _, err = io.Copy(dst, src); err != nil {
		return "", errors.Wrap(err, "writing media file")
	}
	return filepath.ToSlash(filepath.Join(subdir, name)), nil
}

// Open opens a previously saved file for reading.
func (s *Storage) Open(relPath string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(relPath)))
	return f, errors.Wrap(err, "opening media file")
}

// Remove deletes a previously saved file; a missing file is not an error.
func (s *Storage) Remove(relPath string) error {
	if relPath == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(relPath))); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing media file")
	}
	return nil
}

// sanitizeFilename keeps the base name only and strips path separators and spaces.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == ".." || name == "/" {
		return "file"
	}
	return name
}
