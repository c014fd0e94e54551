// Package diskfile owns raw byte I/O for a single paged file: creating and
// destroying the backing OS file, reading and writing fixed-size page
// payloads at their computed offsets, and persisting the file header. It
// has no notion of pinning, caching, or logical page numbers beyond
// "offset p is HeaderSize + p*(4+PageSize) bytes in" — that's PagedFile's
// job, one layer up.
package diskfile

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/jordy-godjo/pfdb/internal/pfconfig"
	"github.com/jordy-godjo/pfdb/internal/pferr"
)

// Header is the on-disk file header at offset 0: the head of the free list
// threaded through page bodies, and the total number of pages ever
// allocated (dense, 0..NumPages-1).
type Header struct {
	FirstFree int32
	NumPages  int32
}

// RawPageRecordSize is the on-disk footprint of one page: its 4-byte
// nextfree link word plus the page payload.
func RawPageRecordSize(pageSize int) int64 {
	return 4 + int64(pageSize)
}

func pageOffset(pageSize int, pageNo int32) int64 {
	return int64(pfconfig.HeaderSize) + int64(pageNo)*RawPageRecordSize(pageSize)
}

// Create makes a new file with an initial, all-free header written.
func Create(name string) error {
	if _, err := os.Stat(name); err == nil {
		return pferr.New(pferr.AlreadyExists, "diskfile.Create")
	} else if !os.IsNotExist(err) {
		return pferr.Wrap(pferr.IOError, "diskfile.Create", err)
	}
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return pferr.Wrap(pferr.IOError, "diskfile.Create", err)
	}
	defer f.Close()
	hdr := Header{FirstFree: pfconfig.EndOfFreeList, NumPages: 0}
	if err := writeHeader(f, hdr); err != nil {
		os.Remove(name)
		return pferr.Wrap(pferr.HeaderWrite, "diskfile.Create", err)
	}
	return nil
}

// Destroy removes the named file. Callers are responsible for verifying it
// is not currently open in this process (see PagedFile.DestroyFile, which
// reports FileOpen for that case); Destroy itself only reports I/O faults.
func Destroy(name string) error {
	if err := os.Remove(name); err != nil {
		return pferr.Wrap(pferr.IOError, "diskfile.Destroy", err)
	}
	return nil
}

// Open opens an existing file and reads its header.
func Open(name string) (*os.File, Header, error) {
	f, err := os.OpenFile(name, os.O_RDWR, 0o644)
	if err != nil {
		return nil, Header{}, pferr.Wrap(pferr.IOError, "diskfile.Open", err)
	}
	hdr, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, Header{}, pferr.Wrap(pferr.HeaderRead, "diskfile.Open", err)
	}
	return f, hdr, nil
}

func readHeader(f *os.File) (Header, error) {
	buf := make([]byte, pfconfig.HeaderSize)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return Header{}, err
	}
	if n != pfconfig.HeaderSize {
		return Header{}, io.ErrUnexpectedEOF
	}
	return Header{
		FirstFree: int32(binary.LittleEndian.Uint32(buf[0:4])),
		NumPages:  int32(binary.LittleEndian.Uint32(buf[4:8])),
	}, nil
}

func writeHeader(f *os.File, hdr Header) error {
	buf := make([]byte, pfconfig.HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(hdr.FirstFree))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(hdr.NumPages))
	n, err := f.WriteAt(buf, 0)
	if err != nil {
		return err
	}
	if n != pfconfig.HeaderSize {
		return io.ErrShortWrite
	}
	return nil
}

// RewriteHeader seeks to offset 0 and overwrites the header in place.
func RewriteHeader(f *os.File, hdr Header) error {
	if err := writeHeader(f, hdr); err != nil {
		return pferr.Wrap(pferr.HeaderWrite, "diskfile.RewriteHeader", err)
	}
	return nil
}

// ReadPage reads exactly one page's worth of on-disk record (link word +
// payload) into buf, which must be pageSize+4 bytes: buf[0:4] receives the
// nextfree link, buf[4:] receives the payload. A short read is an error,
// not a retry point.
func ReadPage(f *os.File, pageSize int, pageNo int32, buf []byte) error {
	want := int(RawPageRecordSize(pageSize))
	if len(buf) != want {
		return pferr.New(pferr.IOError, "diskfile.ReadPage")
	}
	off := pageOffset(pageSize, pageNo)
	n, err := f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return pferr.Wrap(pferr.IOError, "diskfile.ReadPage", err)
	}
	if n != want {
		return pferr.New(pferr.IncompleteRead, "diskfile.ReadPage")
	}
	return nil
}

// WritePage writes exactly one page's worth of on-disk record at its
// computed offset.
func WritePage(f *os.File, pageSize int, pageNo int32, buf []byte) error {
	want := int(RawPageRecordSize(pageSize))
	if len(buf) != want {
		return pferr.New(pferr.IOError, "diskfile.WritePage")
	}
	off := pageOffset(pageSize, pageNo)
	n, err := f.WriteAt(buf, off)
	if err != nil {
		return pferr.Wrap(pferr.IOError, "diskfile.WritePage", err)
	}
	if n != want {
		return pferr.New(pferr.IncompleteWrite, "diskfile.WritePage")
	}
	return nil
}
