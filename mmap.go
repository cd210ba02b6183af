package mfte

import (
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Artifact is a read only view of an artifact file. The bytes are
// memory mapped and must not be used after Close().
type Artifact struct {
	Path string
	Data []byte

	fd      *os.File
	mapping mmap.MMap
}

func (self *Artifact) Size() int64 {
	return int64(len(self.Data))
}

func (self *Artifact) Close() error {
	var err error
	if self.mapping != nil {
		err = self.mapping.Unmap()
		self.mapping = nil
	}
	if self.fd != nil {
		close_err := self.fd.Close()
		if err == nil {
			err = close_err
		}
		self.fd = nil
	}
	self.Data = nil
	return err
}

// OpenArtifact maps path read only. Empty files cannot be mapped and
// give an artifact with no data.
func OpenArtifact(path string) (*Artifact, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	stat, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}

	if stat.Size() == 0 {
		return &Artifact{Path: path, fd: fd, Data: []byte{}}, nil
	}

	mapping, err := mmap.Map(fd, mmap.RDONLY, 0)
	if err != nil {
		fd.Close()
		return nil, err
	}

	return &Artifact{
		Path:    path,
		Data:    mapping,
		fd:      fd,
		mapping: mapping,
	}, nil
}

// ReadArtifact opens path and copies up to limit bytes. It is used for
// companion files that are only needed briefly.
func ReadArtifact(path string, limit int64) ([]byte, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if limit <= 0 {
		return io.ReadAll(fd)
	}
	return io.ReadAll(io.LimitReader(fd, limit))
}
