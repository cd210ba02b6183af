// Volume images may be raw devices such as \\.\c: which on Windows
// may only be read in whole aligned sectors. This reader implements
// page aligned reading and keeps pages in an LRU cache since index
// blocks of one directory tend to be close together.

package mfte

import (
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

const (
	DefaultPageSize  = 4096
	DefaultPageCount = 256
)

type PagedReader struct {
	mu sync.Mutex

	reader   io.ReaderAt
	pagesize int64
	lru      *lru.Cache

	Hits   int64
	Misses int64
}

// ReadAt reads a buffer from an offset in the backing reader.
//
// A read that starts inside the image always fills buf, padding with
// zeros past the end of the image. A read that starts past the end
// returns n = 0 and io.EOF.
func (self *PagedReader) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, io.EOF
	}

	self.mu.Lock()
	defer self.mu.Unlock()

	buf_idx := 0
	for {
		// How much is left in this page to read?
		to_read := int(self.pagesize - offset%self.pagesize)

		// How much do we need to read into the buffer?
		if to_read > len(buf)-buf_idx {
			to_read = len(buf) - buf_idx
		}

		// Are we done?
		if to_read == 0 {
			return buf_idx, nil
		}

		page := offset - offset%self.pagesize
		page_buf, err := self.getPage(page)
		if err != nil {
			if buf_idx > 0 {
				// Pad the rest of the buffer.
				for i := buf_idx; i < len(buf); i++ {
					buf[i] = 0
				}
				return len(buf), nil
			}
			return 0, err
		}

		page_offset := int(offset % self.pagesize)
		copy(buf[buf_idx:buf_idx+to_read], page_buf[page_offset:])

		offset += int64(to_read)
		buf_idx += to_read
	}
}

// Pages are always pagesize long. The last page of the image is
// padded with zeros.
func (self *PagedReader) getPage(page int64) ([]byte, error) {
	cached, pres := self.lru.Get(page)
	if pres {
		self.Hits++
		return cached.([]byte), nil
	}
	self.Misses++

	// Read this page into memory.
	page_buf := make([]byte, self.pagesize)
	n, err := self.reader.ReadAt(page_buf, page)
	if n == 0 && err != nil {
		return nil, err
	}

	self.lru.Add(page, page_buf)
	return page_buf, nil
}

func NewPagedReader(reader io.ReaderAt, pagesize int64, cache_size int) (*PagedReader, error) {
	if pagesize <= 0 {
		pagesize = DefaultPageSize
	}
	if cache_size <= 0 {
		cache_size = DefaultPageCount
	}

	cache, err := lru.New(cache_size)
	if err != nil {
		return nil, err
	}

	return &PagedReader{
		reader:   reader,
		pagesize: pagesize,
		lru:      cache,
	}, nil
}
