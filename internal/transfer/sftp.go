package transfer

import (
	"context"
	"io"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type Entry struct {
	Name string
	Size int64
	Dir  bool
}

// SFTPFetcher pulls media blobs from the tenant's filesystem over the same
// SSH session the tunnel runs on.
type SFTPFetcher struct {
	client *sftp.Client
}

func NewSFTP(conn *ssh.Client) (*SFTPFetcher, error) {
	client, err := sftp.NewClient(conn)
	if err != nil {
		return nil, err
	}
	return &SFTPFetcher{client: client}, nil
}

func (f *SFTPFetcher) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := f.client.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		out = append(out, Entry{Name: fi.Name(), Size: fi.Size(), Dir: fi.IsDir()})
	}
	return out, nil
}

func (f *SFTPFetcher) Fetch(ctx context.Context, filePath string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	file, err := f.client.Open(filePath)
	if err != nil {
		return nil, 0, err
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, err
	}
	return file, stat.Size(), nil
}

func (f *SFTPFetcher) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// Join builds a remote path with forward slashes regardless of the agent's
// host OS.
func Join(elem ...string) string {
	return path.Join(elem...)
}
