package fs

import (
	"io"
	"os"
)

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	StatFunc     func(name string) (os.FileInfo, error)
	OpenFunc     func(name string) (io.ReadCloser, error)
	ReadFileFunc func(name string) ([]byte, error)
}

// Stat mocks the Stat method of FileSystem interface
func (m *MockFileSystem) Stat(name string) (os.FileInfo, error) {
	if m.StatFunc != nil {
		return m.StatFunc(name)
	}
	return nil, os.ErrNotExist
}

// Open mocks the Open method of FileSystem interface
func (m *MockFileSystem) Open(name string) (io.ReadCloser, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(name)
	}
	return nil, os.ErrNotExist
}

// ReadFile mocks the ReadFile method of FileSystem interface
func (m *MockFileSystem) ReadFile(name string) ([]byte, error) {
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(name)
	}
	return nil, os.ErrNotExist
}
