package fs

import (
	"os"
	"path/filepath"
)

// PartSuffix is appended to a destination while it is being written.
const PartSuffix = ".part"

// PartFile writes a download to <dest>.part and renames it to dest on
// Commit, so a destination only ever holds a complete file. An existing
// partial file is reopened for appending.
type PartFile struct {
	dest string
	file *os.File
	size int64
}

// OpenPartFile opens the partial file for dest, creating parent directories.
func OpenPartFile(dest string) (*PartFile, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(dest+PartSuffix, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &PartFile{dest: dest, file: f, size: info.Size()}, nil
}

// Size returns the number of bytes already written.
func (p *PartFile) Size() int64 {
	return p.size
}

// Write appends to the partial file.
func (p *PartFile) Write(b []byte) (int, error) {
	n, err := p.file.Write(b)
	p.size += int64(n)
	return n, err
}

// Reset discards everything written so far.
func (p *PartFile) Reset() error {
	if err := p.file.Truncate(0); err != nil {
		return err
	}
	p.size = 0
	return nil
}

// Commit closes the partial file and moves it into place.
func (p *PartFile) Commit() error {
	if err := p.file.Close(); err != nil {
		return err
	}
	return os.Rename(p.dest+PartSuffix, p.dest)
}

// Abort closes the partial file and leaves it for a later resume.
func (p *PartFile) Abort() error {
	return p.file.Close()
}

// Discard closes and removes the partial file.
func (p *PartFile) Discard() error {
	_ = p.file.Close()
	if err := os.Remove(p.dest + PartSuffix); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether a complete file is at path and returns its size.
func Exists(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}
