package fs

import (
	"io"
	"os"
)

// FileSystem abstracts the local file operations used when provisioning hosts.
type FileSystem interface {
	Stat(name string) (os.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	ReadFile(name string) ([]byte, error)
}

// DefaultFileSystem implements FileSystem using OS calls
type DefaultFileSystem struct{}

// NewFileSystem creates a new default file system implementation
func NewFileSystem() FileSystem {
	return &DefaultFileSystem{}
}

// Stat implements the FileSystem interface by returning file info using os.Stat
func (fs *DefaultFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// Open implements the FileSystem interface by opening a file using os.Open
func (fs *DefaultFileSystem) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// ReadFile implements the FileSystem interface by reading a whole file using os.ReadFile
func (fs *DefaultFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}
