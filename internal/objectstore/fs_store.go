package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts/ttsutils"
)

const (
	filePermissions   = 0o600
	tempUploadPattern = ".upload-*"
	errFmtReadFile    = "failed to read object '%s': %w"
	errFmtWriteFile   = "failed to write object '%s': %w"
)

// FileObjectStore keeps objects as files in a single directory. Keys must be
// bare .wav file names.
type FileObjectStore struct {
	root string
}

// NewFileObjectStore creates root if needed.
func NewFileObjectStore(root string) (*FileObjectStore, error) {
	dirErr := ttsutils.EnsureDir(root)
	if dirErr != nil {
		return nil, dirErr
	}

	return &FileObjectStore{root: root}, nil
}

// Root returns the directory objects are stored in.
func (s *FileObjectStore) Root() string {
	return s.root
}

// Download reads the file stored under key.
func (s *FileObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	ctxErr := ctx.Err()
	if ctxErr != nil {
		return nil, ctxErr
	}

	keyErr := ttsutils.ValidateAudioKey(key)
	if keyErr != nil {
		return nil, keyErr
	}

	data, err := os.ReadFile(filepath.Join(s.root, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = core.ErrObjectNotFound
		}

		return nil, fmt.Errorf(errFmtReadFile, key, err)
	}

	return data, nil
}

// Upload writes data under key. The write goes to a temp file first and is
// renamed into place, so readers never see a partial object.
func (s *FileObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	ctxErr := ctx.Err()
	if ctxErr != nil {
		return ctxErr
	}

	keyErr := ttsutils.ValidateAudioKey(key)
	if keyErr != nil {
		return keyErr
	}

	tempFile, err := os.CreateTemp(s.root, tempUploadPattern)
	if err != nil {
		return fmt.Errorf(errFmtWriteFile, key, err)
	}

	tempPath := tempFile.Name()

	_, writeErr := tempFile.Write(data)
	closeErr := tempFile.Close()

	if err = errors.Join(writeErr, closeErr); err == nil {
		err = os.Chmod(tempPath, filePermissions)
	}

	if err == nil {
		err = os.Rename(tempPath, filepath.Join(s.root, key))
	}

	if err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf(errFmtWriteFile, key, err)
	}

	return nil
}
