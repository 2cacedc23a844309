package eeprom

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// FileDevice is a file-backed image. The file is memory-mapped read-write;
// every Write flushes the touched map so the on-disk image stays current
// (write-through, no dirty mirror).
type FileDevice struct {
	f    *os.File
	data mmap.MMap
	size uint16
}

// OpenFile opens pathname as an EEPROM image.
//
// With size == 0 the file must exist and its length is taken as the image
// capacity. With a nonzero size the file is created if missing and grown to
// size bytes; an existing file of a different nonzero length is rejected
// rather than silently resized.
func OpenFile(pathname string, size uint16) (*FileDevice, error) {
	flags := os.O_RDWR
	if size > 0 {
		flags |= os.O_CREATE
	}
	//nolint:gosec // G304: user-provided image path is the point of this API
	f, err := os.OpenFile(pathname, flags, 0o644)
	if err != nil {
		return nil, &DeviceError{Op: "open", Off: -1, Err: err}
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, &DeviceError{Op: "stat", Off: -1, Err: err}
	}

	switch {
	case size == 0:
		if fi.Size() == 0 || fi.Size() > MaxImageSize {
			_ = f.Close()
			return nil, fmt.Errorf("%w: file is %d bytes", ErrBadSize, fi.Size())
		}
		size = uint16(fi.Size())
	case fi.Size() == 0:
		if err := f.Truncate(int64(size)); err != nil {
			_ = f.Close()
			return nil, &DeviceError{Op: "create", Off: -1, Err: err}
		}
	case fi.Size() != int64(size):
		_ = f.Close()
		return nil, fmt.Errorf("%w: file is %d bytes, expected %d", ErrBadSize, fi.Size(), size)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		return nil, &DeviceError{Op: "map", Off: -1, Err: err}
	}

	return &FileDevice{f: f, data: data, size: size}, nil
}

// Size returns the image capacity in bytes.
func (d *FileDevice) Size() uint16 { return d.size }

// Read copies len(p) bytes starting at off into p.
func (d *FileDevice) Read(p []byte, off uint16) (int, error) {
	if d.data == nil {
		return 0, ErrClosed
	}
	if err := checkRange(d.size, off, len(p)); err != nil {
		return 0, err
	}
	return copy(p, d.data[off:int(off)+len(p)]), nil
}

// Write copies p into the image starting at off and flushes the map.
func (d *FileDevice) Write(p []byte, off uint16) (int, error) {
	if d.data == nil {
		return 0, ErrClosed
	}
	if err := checkRange(d.size, off, len(p)); err != nil {
		return 0, err
	}
	n := copy(d.data[off:int(off)+len(p)], p)
	if err := d.data.Flush(); err != nil {
		return n, &DeviceError{Op: "flush", Off: int(off), Err: err}
	}
	return n, nil
}

// Close unmaps the image and closes the file. It is safe to call Close
// multiple times.
func (d *FileDevice) Close() error {
	if d.data == nil {
		return nil // Already closed.
	}
	err := d.data.Unmap()
	d.data = nil
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	return err
}
