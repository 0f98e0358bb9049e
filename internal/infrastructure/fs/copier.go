// Package fs provides local file access and file uploads to provisioned hosts.
package fs

import (
	"fmt"
	"io"
	"os"
	"path"
)

// SFTPClient abstracts SFTP operations
type SFTPClient interface {
	Create(path string) (io.WriteCloser, error)
	MkdirAll(path string) error
	Chmod(path string, mode os.FileMode) error
}

// Copier uploads local files to a host
type Copier struct {
	fileSystem FileSystem
	client     SFTPClient
}

// NewCopier creates a new Copier instance
func NewCopier(fileSystem FileSystem, client SFTPClient) *Copier {
	return &Copier{fileSystem: fileSystem, client: client}
}

// CopyFile copies a single regular file, keeping its permission bits.
func (c *Copier) CopyFile(local, remote string) error {
	localInfo, err := c.fileSystem.Stat(local)
	if err != nil {
		return fmt.Errorf("stat source file: %w", err)
	}
	if localInfo.IsDir() {
		return fmt.Errorf("source %s is a directory", local)
	}

	localFile, err := c.fileSystem.Open(local)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer localFile.Close()

	if err := c.client.MkdirAll(path.Dir(remote)); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	remoteFile, err := c.client.Create(remote)
	if err != nil {
		return fmt.Errorf("create destination file: %s, %w", remote, err)
	}

	if _, err := io.Copy(remoteFile, localFile); err != nil {
		remoteFile.Close()
		return fmt.Errorf("copy file content: %w", err)
	}
	if err := remoteFile.Close(); err != nil {
		return fmt.Errorf("close destination file: %w", err)
	}

	if err := c.client.Chmod(remote, localInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("set file permissions: %w", err)
	}

	return nil
}
