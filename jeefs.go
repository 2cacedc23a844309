// Package jeefs implements the JetHome EEPROM file system: a CRC-protected
// versioned board-identity header at offset 0, followed by a flat linked
// list of named file records. Images are at most 64 KiB; every multi-byte
// field is little-endian.
//
// The package reads and writes images through a Device, with file-backed
// (memory-mapped) and in-memory implementations provided. All operations are
// write-through and single-threaded; callers that need concurrency must
// serialize externally.
package jeefs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jethome-iot/jeefs/internal/codec"
	"github.com/jethome-iot/jeefs/internal/eeprom"
)

// Device is the byte-addressable image backend the file system consumes.
// Offsets are absolute image offsets; bounds checks belong to the
// implementation. See eeprom.FileDevice and eeprom.MemDevice.
type Device interface {
	Size() uint16
	Read(p []byte, off uint16) (int, error)
	Write(p []byte, off uint16) (int, error)
	Close() error
}

// Version identifies a board-identity header revision.
type Version = codec.Version

// Supported header versions.
const (
	Version1 = codec.Version1
	Version2 = codec.Version2
	Version3 = codec.Version3
)

// FS is a handle to an open EEPROM file system. It exclusively owns its
// Device between Open and Close. FS is not safe for concurrent use.
type FS struct {
	dev   Device
	codec codec.Codec
	log   *slog.Logger
}

// Option configures an FS handle.
type Option func(*FS)

// WithLogger attaches a structured logger. The file system logs walk and
// compaction traces at debug level. Without this option nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(fs *FS) { fs.log = l }
}

// WithLegacyMagic makes the handle accept the pre-2023 "JetHome\x00" header
// magic in addition to the canonical "JETHOME\x00". Headers written through
// this handle always carry the canonical magic.
func WithLegacyMagic() Option {
	return func(fs *FS) { fs.codec.AcceptLegacyMagic = true }
}

// Open opens a file-backed EEPROM image. With size == 0 the file must exist
// and supplies the image capacity; with a nonzero size a missing file is
// created zero-filled at that capacity.
func Open(pathname string, size uint16, opts ...Option) (*FS, error) {
	dev, err := eeprom.OpenFile(pathname, size)
	if err != nil {
		return nil, err
	}
	return OpenDevice(dev, opts...)
}

// OpenBytes opens an in-memory image. The file system aliases image; all
// mutations are visible to the caller.
func OpenBytes(image []byte, opts ...Option) (*FS, error) {
	dev, err := eeprom.NewMemDeviceBytes(image)
	if err != nil {
		return nil, err
	}
	return OpenDevice(dev, opts...)
}

// OpenDevice wraps an arbitrary Device. The header is probed once so a
// freshly opened handle reports its version in the debug log, but an
// unformatted image still opens fine: only Format and SetHeader are usable
// until a valid header exists.
func OpenDevice(dev Device, opts ...Option) (*FS, error) {
	fs := &FS{dev: dev}
	for _, opt := range opts {
		opt(fs)
	}

	if v, err := fs.detectVersion(); err != nil {
		fs.logDebug("open: no valid header", slog.String("reason", err.Error()))
	} else {
		fs.logDebug("open: header detected", slog.Int("version", int(v)))
	}
	return fs, nil
}

// Close releases the underlying device. It is safe to call Close multiple
// times.
func (fs *FS) Close() error {
	if fs.dev == nil {
		return nil // Already closed.
	}
	err := fs.dev.Close()
	fs.dev = nil
	return err
}

// Size returns the image capacity in bytes.
func (fs *FS) Size() uint16 { return fs.dev.Size() }

// detectVersion reads the header prefix and returns the detected version.
func (fs *FS) detectVersion() (Version, error) {
	prefix := make([]byte, codec.PrefixSize)
	if int(fs.dev.Size()) < len(prefix) {
		return 0, ErrBufferTooShort
	}
	if _, err := fs.dev.Read(prefix, 0); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEepromRead, err)
	}
	return fs.codec.DetectVersion(prefix)
}

// filesStart re-detects the header version and returns the offset of the
// first file record. Every file operation derives its walk origin here so a
// header rewritten underneath the handle is picked up immediately.
func (fs *FS) filesStart() (uint16, error) {
	v, err := fs.detectVersion()
	if err != nil {
		return 0, err
	}
	size, err := codec.HeaderSize(v)
	if err != nil {
		return 0, err
	}
	return uint16(size), nil
}

func (fs *FS) logDebug(msg string, attrs ...slog.Attr) {
	if fs.log == nil {
		return
	}
	fs.log.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}
