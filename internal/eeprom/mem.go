package eeprom

import "fmt"

// MemDevice is an in-memory image backend, used for scratch images and
// tests. The zero value is not usable; construct with NewMemDevice or
// NewMemDeviceBytes.
type MemDevice struct {
	data   []byte
	closed bool
}

// NewMemDevice creates a zero-filled in-memory image of the given size.
func NewMemDevice(size uint16) (*MemDevice, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: zero", ErrBadSize)
	}
	return &MemDevice{data: make([]byte, size)}, nil
}

// NewMemDeviceBytes wraps an existing image buffer. The device aliases data;
// writes are visible to the caller.
func NewMemDeviceBytes(data []byte) (*MemDevice, error) {
	if len(data) == 0 || len(data) > MaxImageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadSize, len(data))
	}
	return &MemDevice{data: data}, nil
}

// Size returns the image capacity in bytes.
func (d *MemDevice) Size() uint16 { return uint16(len(d.data)) }

// Read copies len(p) bytes starting at off into p.
func (d *MemDevice) Read(p []byte, off uint16) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if err := checkRange(d.Size(), off, len(p)); err != nil {
		return 0, err
	}
	return copy(p, d.data[off:int(off)+len(p)]), nil
}

// Write copies p into the image starting at off.
func (d *MemDevice) Write(p []byte, off uint16) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if err := checkRange(d.Size(), off, len(p)); err != nil {
		return 0, err
	}
	return copy(d.data[off:int(off)+len(p)], p), nil
}

// Bytes returns the backing buffer. The slice aliases the device.
func (d *MemDevice) Bytes() []byte { return d.data }

// Close marks the device closed. It is safe to call Close multiple times.
func (d *MemDevice) Close() error {
	d.closed = true
	return nil
}
