package persist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrCorrupt is returned when neither the primary file nor its backup
// can be decoded.
var ErrCorrupt = errors.New("state file and backup both unreadable")

// Suffixes of the atomic write protocol.
const (
	tmpSuffix    = ".tmp"
	backupSuffix = ".bak"
)

// File permissions for state files and parent directories.
const (
	filePerm = 0o600
	dirPerm  = 0o750
)

// SaveAtomic writes state to path with crash-safe discipline:
// encode to <path>.tmp, copy any existing <path> to <path>.bak, then
// atomically rename the temp file over the primary. The previous version
// survives as the backup until the next successful save.
func SaveAtomic(path string, codec Codec, state any) error {
	err := os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmpPath := path + tmpSuffix

	err = writeFile(tmpPath, codec, state)
	if err != nil {
		return err
	}

	_, statErr := os.Stat(path)
	if statErr == nil {
		copyErr := copyFile(path, path+backupSuffix)
		if copyErr != nil {
			return fmt.Errorf("retain backup: %w", copyErr)
		}
	}

	renameErr := os.Rename(tmpPath, path)
	if renameErr != nil {
		return fmt.Errorf("commit state file: %w", renameErr)
	}

	return nil
}

// WriteBytesAtomic writes raw bytes through the temp-then-rename path.
// No backup is retained: it serves immutable artifacts (image files)
// that are written once and never updated in place.
func WriteBytesAtomic(path string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmpPath := path + tmpSuffix

	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}

	_, writeErr := file.Write(data)
	syncErr := file.Sync()
	closeErr := file.Close()

	err = errors.Join(writeErr, syncErr, closeErr)
	if err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("write artifact: %w", err)
	}

	renameErr := os.Rename(tmpPath, path)
	if renameErr != nil {
		return fmt.Errorf("commit artifact: %w", renameErr)
	}

	return nil
}

// LoadWithFallback decodes path into state, falling back to the .bak
// copy when the primary is missing or corrupt. Returns ErrCorrupt when
// both fail, and os.ErrNotExist when neither file exists.
func LoadWithFallback(path string, codec Codec, state any) error {
	primaryErr := readFile(path, codec, state)
	if primaryErr == nil {
		return nil
	}

	backupErr := readFile(path+backupSuffix, codec, state)
	if backupErr == nil {
		return nil
	}

	if errors.Is(primaryErr, os.ErrNotExist) && errors.Is(backupErr, os.ErrNotExist) {
		return fmt.Errorf("open state file %s: %w", path, os.ErrNotExist)
	}

	return fmt.Errorf("%w: %s (primary: %v; backup: %v)", ErrCorrupt, path, primaryErr, backupErr)
}

func writeFile(path string, codec Codec, state any) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	encErr := codec.Encode(file, state)
	if encErr != nil {
		_ = file.Close()
		_ = os.Remove(path)

		return fmt.Errorf("encode state: %w", encErr)
	}

	syncErr := file.Sync()
	closeErr := file.Close()

	err = errors.Join(syncErr, closeErr)
	if err != nil {
		return fmt.Errorf("flush temp state file: %w", err)
	}

	return nil
}

func readFile(path string, codec Codec, state any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()

	err = errors.Join(copyErr, closeErr)
	if err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	return nil
}
