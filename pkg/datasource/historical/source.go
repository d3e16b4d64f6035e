package historical

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var ErrEof = errors.New("EOF")

// Source is a memory mapped file of fixed width records of type T.
// T must consist of fixed size fields without padding, stored little endian.
type Source[T any] struct {
	dataSourceName string
	reader         *mmap.ReaderAt
	entrySize      int
	bufferPool     *sync.Pool
}

func NewSource[T any](dataSourceName string) *Source[T] {
	entrySize := int(unsafe.Sizeof(*new(T)))
	return &Source[T]{
		dataSourceName: dataSourceName,
		entrySize:      entrySize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buffer := make([]byte, entrySize)
				return &buffer
			},
		},
	}
}

func (s *Source[T]) Open() error {
	if s.entrySize == 0 {
		return fmt.Errorf("size of record type is zero")
	}
	var err error
	s.reader, err = mmap.Open(s.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", s.dataSourceName, err)
	}
	return nil
}

func (s *Source[T]) Close() {
	if s.reader != nil {
		_ = s.reader.Close()
	}
}

func (s *Source[T]) Read(index int64, data *T) error {
	buffer := s.bufferPool.Get().(*[]byte)
	defer s.bufferPool.Put(buffer)

	n, err := s.reader.ReadAt(*buffer, index*int64(s.entrySize))
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read: %w", err)
	}
	if n < len(*buffer) {
		return ErrEof
	}

	*data = *(*T)(unsafe.Pointer(&(*buffer)[0])) // #nosec G103
	return nil
}

func (s *Source[T]) EntryCount() (int64, error) {
	totalSize := int64(s.reader.Len())
	if totalSize%int64(s.entrySize) != 0 {
		return 0, fmt.Errorf("data source %q size %d is not a multiple of entry size %d", s.dataSourceName, totalSize, s.entrySize)
	}
	return totalSize / int64(s.entrySize), nil
}
