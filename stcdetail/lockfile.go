package stcdetail

import (
	"os"
	"path/filepath"
)

type ErrIsDirectory string

func (e ErrIsDirectory) Error() string {
	return string(e) + ": is a directory"
}

// Replaces the file at path by writing through an exclusive lockfile
// (path + ".lock") that is renamed over path only if action
// succeeds.  The parent directory is created with mode 0700 if
// missing.  A previous version of the file is kept as path + "~".
func UpdateFile(path string, perm os.FileMode,
	action func(*os.File) error) (err error) {
	if path == "" {
		return os.ErrInvalid
	}
	if fi, e := os.Stat(path); e == nil && fi.IsDir() {
		return ErrIsDirectory(path)
	} else if e != nil && !os.IsNotExist(e) {
		return e
	}
	if err = os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}

	lockpath := path + ".lock"
	f, err := os.OpenFile(lockpath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return
	}
	committed := false
	defer func() {
		if f != nil {
			f.Close()
		}
		if !committed {
			os.Remove(lockpath)
		}
	}()
	if err = action(f); err != nil {
		return
	}
	if err = f.Sync(); err != nil {
		return
	}
	err, f = f.Close(), nil
	if err != nil {
		return
	}

	backup := path + "~"
	os.Remove(backup)
	os.Link(path, backup)
	if err = os.Rename(lockpath, path); err == nil {
		committed = true
	}
	return
}

// Writes data to path via UpdateFile.
func SafeWriteFile(path string, data []byte, perm os.FileMode) error {
	return UpdateFile(path, perm, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// Like SafeWriteFile, but fails with os.ErrExist if path exists.
func SafeCreateFile(path string, data []byte, perm os.FileMode) error {
	if _, err := os.Lstat(path); err == nil {
		return &os.PathError{Op: "create", Path: path, Err: os.ErrExist}
	}
	return SafeWriteFile(path, data, perm)
}
