package jeefs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
)

// File record layout. Each record is a fixed 24-byte header followed by the
// file's data bytes; records form a singly-linked list of absolute image
// offsets starting right after the board-identity header.
const (
	// FileNameLength is the maximum number of name bytes before the
	// terminator. The on-image name field is FileNameLength+1 bytes.
	FileNameLength = 15

	// FileHeaderSize is the on-image size of a file record header.
	FileHeaderSize = 24

	fileNameSize   = FileNameLength + 1
	dataSizeOffset = 16
	dataCRCOffset  = 18
	nextAddrOffset = 22
)

// Empty slot sentinels: erased EEPROM reads 0xFF, zeroed EEPROM reads 0x00.
// Either value in name[0] or dataSize marks the end of the record list.
const (
	emptyByteZero   = 0x00
	emptyByteErased = 0xFF
)

// fileRecord is the decoded form of a 24-byte file record header.
type fileRecord struct {
	name     [fileNameSize]byte
	dataSize uint16
	dataCRC  uint32
	next     uint16
}

func decodeFileRecord(b []byte) fileRecord {
	var r fileRecord
	copy(r.name[:], b[:fileNameSize])
	r.dataSize = binary.LittleEndian.Uint16(b[dataSizeOffset:])
	r.dataCRC = binary.LittleEndian.Uint32(b[dataCRCOffset:])
	r.next = binary.LittleEndian.Uint16(b[nextAddrOffset:])
	return r
}

func (r *fileRecord) encode(b []byte) {
	copy(b[:fileNameSize], r.name[:])
	binary.LittleEndian.PutUint16(b[dataSizeOffset:], r.dataSize)
	binary.LittleEndian.PutUint32(b[dataCRCOffset:], r.dataCRC)
	binary.LittleEndian.PutUint16(b[nextAddrOffset:], r.next)
}

// fileName returns the stored name truncated at the first NUL, capped at
// FileNameLength bytes.
func (r *fileRecord) fileName() string {
	name := r.name[:FileNameLength]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

// isEmpty reports whether the slot holds no record. Both EEPROM rest states
// count as empty, in the name's first byte or in either dataSize byte pair.
func (r *fileRecord) isEmpty() bool {
	if r.name[0] == emptyByteZero || r.name[0] == emptyByteErased {
		return true
	}
	return r.dataSize == 0x0000 || r.dataSize == 0xFFFF
}

// matches compares the stored name against name with strncmp(..., 15)
// semantics: name is truncated to FileNameLength bytes first.
func (r *fileRecord) matches(name string) bool {
	if len(name) > FileNameLength {
		name = name[:FileNameLength]
	}
	return r.fileName() == name
}

// validateFileName enforces the naming rules shared by every operation that
// takes a file name.
func validateFileName(name string) error {
	if name == "" {
		return ErrFileNameTooShort
	}
	if len(name) > FileNameLength {
		return fmt.Errorf("%w: %q is %d bytes, max %d", ErrFileNameTooLong, name, len(name), FileNameLength)
	}
	if strings.IndexByte(name, 0) >= 0 || name[0] == emptyByteErased {
		return fmt.Errorf("%w: %q", ErrFileNameInvalid, name)
	}
	return nil
}

// recordBufPool recycles the scratch buffers for the 24-byte record headers
// that every walk reads and rewrites; the fixed size means no growth logic.
var recordBufPool = sync.Pool{
	New: func() interface{} {
		return new([FileHeaderSize]byte)
	},
}

// readRecord reads and decodes the record header at off. The second return
// is false when the image has no room for a full header at off.
func (fs *FS) readRecord(off uint16) (fileRecord, bool, error) {
	if int(off)+FileHeaderSize > int(fs.dev.Size()) {
		return fileRecord{}, false, nil
	}
	buf := recordBufPool.Get().(*[FileHeaderSize]byte)
	defer recordBufPool.Put(buf)
	if _, err := fs.dev.Read(buf[:], off); err != nil {
		return fileRecord{}, false, fmt.Errorf("%w: %w", ErrEepromRead, err)
	}
	return decodeFileRecord(buf[:]), true, nil
}

// writeRecord encodes and writes the record header at off.
func (fs *FS) writeRecord(off uint16, r *fileRecord) error {
	buf := recordBufPool.Get().(*[FileHeaderSize]byte)
	defer recordBufPool.Put(buf)
	r.encode(buf[:])
	if _, err := fs.dev.Write(buf[:], off); err != nil {
		return fmt.Errorf("%w: %w", ErrEepromWrite, err)
	}
	return nil
}

// walk iterates the record list from filesStart, calling fn for every
// occupied record. fn returning false stops the walk early. The walk ends at
// an empty slot, a terminating next pointer, or the image edge; any offset
// that breaks the contiguity invariant aborts with ErrEepromCorrupted.
func (fs *FS) walk(filesStart uint16, fn func(off uint16, rec fileRecord) bool) error {
	size := int(fs.dev.Size())
	cur := filesStart
	for {
		rec, ok, err := fs.readRecord(cur)
		if err != nil {
			return err
		}
		if !ok || rec.isEmpty() {
			return nil
		}
		end := int(cur) + FileHeaderSize + int(rec.dataSize)
		if end > size {
			return fmt.Errorf("%w: record at %d overruns image size %d", ErrEepromCorrupted, cur, size)
		}
		if !fn(cur, rec) {
			return nil
		}
		if rec.next == 0 {
			return nil
		}
		if int(rec.next) != end {
			return fmt.Errorf("%w: record at %d links to %d, expected %d", ErrEepromCorrupted, cur, rec.next, end)
		}
		cur = rec.next
	}
}

// findFile locates the record named name. Absence is reported by found ==
// false, distinct from I/O or corruption failures.
func (fs *FS) findFile(filesStart uint16, name string) (rec fileRecord, off uint16, found bool, err error) {
	werr := fs.walk(filesStart, func(o uint16, r fileRecord) bool {
		if r.matches(name) {
			rec, off, found = r, o, true
			return false
		}
		return true
	})
	return rec, off, found, werr
}
