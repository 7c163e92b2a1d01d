package iso9660

import (
	"bytes"
	"io"
	"os"
)

// chunkedStream lazily reads a byte range in chunkSize pieces, each via its
// own freshly opened file handle, per the streaming contract. A background
// goroutine keeps at most one chunk prepared ahead of the one currently
// being consumed (two chunks "in flight": the one being read by the
// consumer and the one being prefetched).
type chunkedStream struct {
	ch     chan chunkResult
	done   chan struct{}
	cur    *bytes.Reader
	closed bool
}

type chunkResult struct {
	data []byte
	err  error
}

func newChunkedStream(path string, baseOffset, size int64) *chunkedStream {
	s := &chunkedStream{
		ch:   make(chan chunkResult),
		done: make(chan struct{}),
	}
	go s.produce(path, baseOffset, size)
	return s
}

func (s *chunkedStream) produce(path string, baseOffset, size int64) {
	defer close(s.ch)
	var offset int64
	for offset < size {
		n := int64(chunkSize)
		if remaining := size - offset; remaining < n {
			n = remaining
		}
		data, err := readRange(path, baseOffset+offset, n)
		select {
		case s.ch <- chunkResult{data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
		offset += n
	}
}

func readRange(path string, offset, length int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(f, offset, length), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *chunkedStream) Read(p []byte) (int, error) {
	for {
		if s.cur != nil {
			n, err := s.cur.Read(p)
			if n > 0 {
				return n, nil
			}
			if err == io.EOF {
				s.cur = nil
				continue
			}
			return n, err
		}
		res, ok := <-s.ch
		if !ok {
			return 0, io.EOF
		}
		if res.err != nil {
			return 0, res.err
		}
		s.cur = bytes.NewReader(res.data)
	}
}

func (s *chunkedStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}
