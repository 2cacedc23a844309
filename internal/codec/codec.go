// Package codec implements the versioned JEEFS board-identity header:
// version detection, CRC32 validation and the on-image field layout.
// All functions operate on caller-supplied byte slices and perform no I/O.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Header magic strings. Magic is the generated-contract form; LegacyMagic is
// the pre-generator hand-written form found on old boards and is only
// recognized when Codec.AcceptLegacyMagic is set.
const (
	Magic       = "JETHOME\x00"
	LegacyMagic = "JetHome\x00"
	MagicLength = 8
)

// Version identifies a board-identity header revision.
type Version uint8

// Supported header versions.
const (
	Version1 Version = 1
	Version2 Version = 2
	Version3 Version = 3
)

// Header layout constants. All multi-byte fields are little-endian and the
// record is tightly packed. Offsets shared by every version come first;
// version-specific fields are suffixed with the version they belong to.
const (
	VersionOffset = 8
	PrefixSize    = 12 // magic + version + reserved, enough to detect

	HeaderSizeV1 = 512
	HeaderSizeV2 = 256
	HeaderSizeV3 = 256

	BoardnameOffset = 12
	BoardnameSize   = 32
	BoardnameMax    = 31 // content bytes before the terminator

	BoardversionOffset = 44
	BoardversionSize   = 32
	BoardversionMax    = 31

	SerialOffset = 76
	SerialSize   = 32

	USIDOffset = 108
	USIDSize   = 32

	CPUIDOffset = 140
	CPUIDSize   = 32

	MACOffset = 172
	MACSize   = 6

	// v1 only: sixteen 16-bit module identifiers.
	ModulesOffsetV1 = 180
	ModuleCount     = 16

	// v3 only.
	SignatureVersionOffsetV3 = 9
	SignatureOffsetV3        = 180
	SignatureSizeV3          = 64
	TimestampOffsetV3        = 244

	CRCSize = 4
)

// Signature algorithm identifiers stored in the v3 signature_version field.
// The codec stores and reports these; it does not perform any cryptography.
const (
	SigNone      uint8 = 0
	SigSecp192r1 uint8 = 1 // ECDSA secp192r1/NIST P-192, r||s
	SigSecp256r1 uint8 = 2 // ECDSA secp256r1/NIST P-256, r||s
)

// Codec error kinds. They are distinct so callers can choose between
// "reformat" and "abort".
var (
	ErrBadMagic       = errors.New("jeefs: bad header magic")
	ErrUnknownVersion = errors.New("jeefs: unknown header version")
	ErrBufferTooShort = errors.New("jeefs: buffer too short for header")
	ErrBadCRC         = errors.New("jeefs: header CRC32 mismatch")
)

// Codec holds header-parsing options. The zero value is the strict
// generated-contract codec and is ready to use.
type Codec struct {
	// AcceptLegacyMagic also recognizes the pre-generator "JetHome\x00"
	// magic when detecting versions. Freshly initialized headers always
	// carry the canonical magic.
	AcceptLegacyMagic bool
}

// HeaderSize returns the total on-image size of a version's header.
func HeaderSize(v Version) (int, error) {
	switch v {
	case Version1:
		return HeaderSizeV1, nil
	case Version2:
		return HeaderSizeV2, nil
	case Version3:
		return HeaderSizeV3, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownVersion, v)
	}
}

// DetectVersion reads the 12-byte prefix and returns the header version.
// At least PrefixSize bytes of data are required.
func (c Codec) DetectVersion(data []byte) (Version, error) {
	if len(data) < PrefixSize {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooShort, PrefixSize, len(data))
	}
	if !c.magicMatches(data) {
		return 0, ErrBadMagic
	}
	v := Version(data[VersionOffset])
	if _, err := HeaderSize(v); err != nil {
		return 0, err
	}
	return v, nil
}

func (c Codec) magicMatches(data []byte) bool {
	if string(data[:MagicLength]) == Magic {
		return true
	}
	return c.AcceptLegacyMagic && string(data[:MagicLength]) == LegacyMagic
}

// VerifyCRC checks the trailing CRC32 word of the header found in data.
// The stored CRC covers every header byte before it. A stored CRC of zero
// is rejected regardless of the computed value.
func (c Codec) VerifyCRC(data []byte) error {
	size, err := c.detectSize(data)
	if err != nil {
		return err
	}
	crcOffset := size - CRCSize
	stored := binary.LittleEndian.Uint32(data[crcOffset:])
	if stored == 0 {
		return fmt.Errorf("%w: stored CRC is zero", ErrBadCRC)
	}
	computed := crc32.ChecksumIEEE(data[:crcOffset])
	if stored != computed {
		return fmt.Errorf("%w: stored %#08x, computed %#08x", ErrBadCRC, stored, computed)
	}
	return nil
}

// UpdateCRC recomputes the header CRC32 and stores it in the trailing word.
func (c Codec) UpdateCRC(data []byte) error {
	size, err := c.detectSize(data)
	if err != nil {
		return err
	}
	crcOffset := size - CRCSize
	binary.LittleEndian.PutUint32(data[crcOffset:], crc32.ChecksumIEEE(data[:crcOffset]))
	return nil
}

// Init formats data as a blank version-v header: the header region is
// zero-filled, magic and version are written, and the CRC is computed.
// Every other field is left zero, including signature_version for v3.
func (c Codec) Init(data []byte, v Version) error {
	size, err := HeaderSize(v)
	if err != nil {
		return err
	}
	if len(data) < size {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooShort, size, len(data))
	}
	for i := 0; i < size; i++ {
		data[i] = 0
	}
	copy(data, Magic)
	data[VersionOffset] = byte(v)
	return c.UpdateCRC(data)
}

// detectSize detects the version and validates that data holds a full header.
func (c Codec) detectSize(data []byte) (int, error) {
	v, err := c.DetectVersion(data)
	if err != nil {
		return 0, err
	}
	size, err := HeaderSize(v)
	if err != nil {
		return 0, err
	}
	if len(data) < size {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooShort, size, len(data))
	}
	return size, nil
}

// Package-level convenience wrappers using the strict codec.

// DetectVersion detects the header version with the strict codec.
func DetectVersion(data []byte) (Version, error) { return Codec{}.DetectVersion(data) }

// VerifyCRC verifies the header CRC with the strict codec.
func VerifyCRC(data []byte) error { return Codec{}.VerifyCRC(data) }

// UpdateCRC updates the header CRC with the strict codec.
func UpdateCRC(data []byte) error { return Codec{}.UpdateCRC(data) }

// Init initializes a blank version-v header in data.
func Init(data []byte, v Version) error { return Codec{}.Init(data, v) }
