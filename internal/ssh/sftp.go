package ssh

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	xssh "golang.org/x/crypto/ssh"
)

// PushFile uploads a local file to a remote path via SFTP. Remote paths use
// forward slashes regardless of the local platform.
func PushFile(cli *xssh.Client, localPath, remotePath string) error {
	sf, err := sftp.NewClient(cli)
	if err != nil {
		return fmt.Errorf("sftp client: %w", err)
	}
	defer sf.Close()
	if err := sf.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("mkdir remote: %w", err)
	}
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local: %w", err)
	}
	defer src.Close()
	dst, err := sf.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// RemoveFile deletes a remote file via SFTP. A missing file is not an error.
func RemoveFile(cli *xssh.Client, remotePath string) error {
	sf, err := sftp.NewClient(cli)
	if err != nil {
		return fmt.Errorf("sftp client: %w", err)
	}
	defer sf.Close()
	if err := sf.Remove(remotePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove remote: %w", err)
	}
	return nil
}
