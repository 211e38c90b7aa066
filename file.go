package gsfs

import (
	"context"
	"io"

	"github.com/seqeralabs/nxf-gsfs/data"
)

// ReadFile reads the whole object at p into memory.
func (fs *FileSystem) ReadFile(ctx context.Context, p *Path) ([]byte, error) {
	channel, err := fs.OpenRead(ctx, p)
	if err != nil {
		return nil, err
	}
	defer channel.Close()

	payload := make([]byte, 0, channel.Size())
	buf := make([]byte, 32*1024)
	for {
		n, err := channel.Read(buf)
		payload = append(payload, buf[:n]...)
		if err == io.EOF {
			return payload, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// WriteFile writes payload as the object at p, creating or replacing it.
func (fs *FileSystem) WriteFile(ctx context.Context, p *Path, payload []byte) error {
	channel, err := fs.OpenWrite(ctx, p, data.AccessModeCreate|data.AccessModeTruncate)
	if err != nil {
		return err
	}

	if _, err := channel.Write(payload); err != nil {
		channel.Close()
		return err
	}
	return channel.Close()
}
