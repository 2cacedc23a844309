package jeefs

import (
	"fmt"
	"log/slog"

	"github.com/jethome-iot/jeefs/internal/codec"
)

// Format re-initializes the image: the file region is filled with 0x00 and a
// blank version-v header is written at offset 0. Everything previously
// stored is lost.
func (fs *FS) Format(v Version) error {
	hdrSize, err := codec.HeaderSize(v)
	if err != nil {
		return err
	}
	size := int(fs.dev.Size())
	if hdrSize > size {
		return fmt.Errorf("%w: header needs %d bytes, image has %d", ErrNotEnoughSpace, hdrSize, size)
	}

	// Clear the file region first so a crash mid-format cannot leave stale
	// records behind a fresh header.
	const chunk = 256
	zeros := make([]byte, chunk)
	for off := hdrSize; off < size; off += chunk {
		n := chunk
		if off+n > size {
			n = size - off
		}
		if _, err := fs.dev.Write(zeros[:n], uint16(off)); err != nil {
			return fmt.Errorf("%w: %w", ErrEepromWrite, err)
		}
	}

	hdr := make([]byte, hdrSize)
	if err := fs.codec.Init(hdr, v); err != nil {
		return err
	}
	if _, err := fs.dev.Write(hdr, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrEepromWrite, err)
	}

	fs.logDebug("format: image initialized", slog.Int("version", int(v)), slog.Int("headerSize", hdrSize))
	return nil
}

// HeaderCheckConsistency validates the board-identity header: magic, version
// and CRC32. File data CRCs are not checked; use VerifyFile per file.
func (fs *FS) HeaderCheckConsistency() error {
	hdr, err := fs.readHeaderBytes()
	if err != nil {
		return err
	}
	return fs.codec.VerifyCRC(hdr)
}

// GetHeader copies the raw header bytes into buf and returns the header
// size. buf must hold at least the detected version's header.
func (fs *FS) GetHeader(buf []byte) (int, error) {
	size, err := fs.headerSize()
	if err != nil {
		return 0, err
	}
	if len(buf) < size {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooShort, size, len(buf))
	}
	if _, err := fs.dev.Read(buf[:size], 0); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEepromRead, err)
	}
	return size, nil
}

// Header returns a decoded copy of the board-identity header. Mutations to
// the returned header do not touch the image until SetHeader.
func (fs *FS) Header() (*codec.Header, error) {
	hdr, err := fs.readHeaderBytes()
	if err != nil {
		return nil, err
	}
	return fs.codec.ParseHeader(hdr)
}

// SetHeader validates data as a complete header, recomputes its CRC32 and
// writes it to offset 0. The stored file records are untouched, so swapping
// in a header of a different size moves the file region boundary.
func (fs *FS) SetHeader(data []byte) error {
	v, err := fs.codec.DetectVersion(data)
	if err != nil {
		return err
	}
	size, err := codec.HeaderSize(v)
	if err != nil {
		return err
	}
	if len(data) < size {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooShort, size, len(data))
	}
	if size > int(fs.dev.Size()) {
		return fmt.Errorf("%w: header needs %d bytes, image has %d", ErrNotEnoughSpace, size, fs.dev.Size())
	}

	own := make([]byte, size)
	copy(own, data[:size])
	// A header accepted under the legacy magic is stored with the canonical one.
	copy(own, codec.Magic)
	if err := fs.codec.UpdateCRC(own); err != nil {
		return err
	}
	if _, err := fs.dev.Write(own, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrEepromWrite, err)
	}
	return nil
}

// headerSize detects the stored header version and returns its total size,
// validating that the image can hold it.
func (fs *FS) headerSize() (int, error) {
	v, err := fs.detectVersion()
	if err != nil {
		return 0, err
	}
	size, err := codec.HeaderSize(v)
	if err != nil {
		return 0, err
	}
	if int(fs.dev.Size()) < size {
		return 0, fmt.Errorf("%w: image smaller than v%d header", ErrBufferTooShort, v)
	}
	return size, nil
}

// readHeaderBytes reads the full header for the detected version into a
// fresh buffer owned by the caller.
func (fs *FS) readHeaderBytes() ([]byte, error) {
	size, err := fs.headerSize()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := fs.dev.Read(buf, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEepromRead, err)
	}
	return buf, nil
}
