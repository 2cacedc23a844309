package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Header is a typed view over the raw bytes of a board-identity record.
// It never reallocates: mutations write straight into the wrapped slice, and
// the caller decides when to recompute the CRC via UpdateCRC.
type Header struct {
	data []byte
	ver  Version
}

// NewHeader allocates and initializes a blank header of the given version.
func NewHeader(v Version) (*Header, error) {
	size, err := HeaderSize(v)
	if err != nil {
		return nil, err
	}
	data := make([]byte, size)
	if err := Init(data, v); err != nil {
		return nil, err
	}
	return &Header{data: data, ver: v}, nil
}

// ParseHeader wraps existing header bytes. The version is detected but the
// CRC is not checked; call VerifyCRC separately when integrity matters.
func ParseHeader(data []byte) (*Header, error) {
	return Codec{}.ParseHeader(data)
}

// ParseHeader wraps existing header bytes using the codec's magic rules.
func (c Codec) ParseHeader(data []byte) (*Header, error) {
	v, err := c.DetectVersion(data)
	if err != nil {
		return nil, err
	}
	size, err := HeaderSize(v)
	if err != nil {
		return nil, err
	}
	if len(data) < size {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooShort, size, len(data))
	}
	return &Header{data: data[:size], ver: v}, nil
}

// Version returns the detected header version.
func (h *Header) Version() Version { return h.ver }

// Size returns the total header size in bytes.
func (h *Header) Size() int { return len(h.data) }

// Bytes returns the underlying header bytes. The slice aliases the header;
// mutating it invalidates the stored CRC until UpdateCRC runs.
func (h *Header) Bytes() []byte { return h.data }

// UpdateCRC recomputes and stores the trailing CRC32.
func (h *Header) UpdateCRC() error { return UpdateCRC(h.data) }

// VerifyCRC validates the trailing CRC32.
func (h *Header) VerifyCRC() error { return VerifyCRC(h.data) }

// Boardname returns the null-terminated board name.
func (h *Header) Boardname() string {
	return cString(h.data[BoardnameOffset : BoardnameOffset+BoardnameSize])
}

// SetBoardname stores a board name of at most BoardnameMax bytes.
func (h *Header) SetBoardname(name string) error {
	return setCString(h.data[BoardnameOffset:BoardnameOffset+BoardnameSize], name, BoardnameMax)
}

// BoardVersion returns the null-terminated board version string.
func (h *Header) BoardVersion() string {
	return cString(h.data[BoardversionOffset : BoardversionOffset+BoardversionSize])
}

// SetBoardVersion stores a board version of at most BoardversionMax bytes.
func (h *Header) SetBoardVersion(ver string) error {
	return setCString(h.data[BoardversionOffset:BoardversionOffset+BoardversionSize], ver, BoardversionMax)
}

// Serial returns a copy of the 32 raw serial bytes.
func (h *Header) Serial() []byte { return copyField(h.data, SerialOffset, SerialSize) }

// SetSerial stores up to 32 serial bytes, zero-padding the remainder.
func (h *Header) SetSerial(serial []byte) error {
	return setField(h.data, SerialOffset, SerialSize, serial)
}

// USID returns a copy of the 32 raw USID bytes.
func (h *Header) USID() []byte { return copyField(h.data, USIDOffset, USIDSize) }

// SetUSID stores up to 32 USID bytes, zero-padding the remainder.
func (h *Header) SetUSID(usid []byte) error {
	return setField(h.data, USIDOffset, USIDSize, usid)
}

// CPUID returns a copy of the 32 raw CPU-ID bytes.
func (h *Header) CPUID() []byte { return copyField(h.data, CPUIDOffset, CPUIDSize) }

// SetCPUID stores up to 32 CPU-ID bytes, zero-padding the remainder.
func (h *Header) SetCPUID(cpuid []byte) error {
	return setField(h.data, CPUIDOffset, CPUIDSize, cpuid)
}

// MAC returns a copy of the 6 MAC address bytes.
func (h *Header) MAC() []byte { return copyField(h.data, MACOffset, MACSize) }

// SetMAC stores a 6-byte MAC address.
func (h *Header) SetMAC(mac []byte) error {
	if len(mac) != MACSize {
		return fmt.Errorf("jeefs: MAC must be %d bytes, got %d", MACSize, len(mac))
	}
	copy(h.data[MACOffset:MACOffset+MACSize], mac)
	return nil
}

// Modules returns the sixteen module identifiers of a v1 header.
func (h *Header) Modules() ([ModuleCount]uint16, error) {
	var mods [ModuleCount]uint16
	if h.ver != Version1 {
		return mods, fmt.Errorf("jeefs: modules are a v1 field, header is v%d", h.ver)
	}
	for i := range mods {
		mods[i] = binary.LittleEndian.Uint16(h.data[ModulesOffsetV1+2*i:])
	}
	return mods, nil
}

// SetModule stores one module identifier of a v1 header.
func (h *Header) SetModule(index int, id uint16) error {
	if h.ver != Version1 {
		return fmt.Errorf("jeefs: modules are a v1 field, header is v%d", h.ver)
	}
	if index < 0 || index >= ModuleCount {
		return fmt.Errorf("jeefs: module index %d out of range [0,%d)", index, ModuleCount)
	}
	binary.LittleEndian.PutUint16(h.data[ModulesOffsetV1+2*index:], id)
	return nil
}

// SignatureVersion returns the v3 signature algorithm identifier.
func (h *Header) SignatureVersion() (uint8, error) {
	if h.ver != Version3 {
		return 0, fmt.Errorf("jeefs: signature_version is a v3 field, header is v%d", h.ver)
	}
	return h.data[SignatureVersionOffsetV3], nil
}

// SetSignatureVersion stores the v3 signature algorithm identifier.
func (h *Header) SetSignatureVersion(alg uint8) error {
	if h.ver != Version3 {
		return fmt.Errorf("jeefs: signature_version is a v3 field, header is v%d", h.ver)
	}
	if alg > SigSecp256r1 {
		return fmt.Errorf("jeefs: unknown signature algorithm %d", alg)
	}
	h.data[SignatureVersionOffsetV3] = alg
	return nil
}

// Signature returns a copy of the 64 signature bytes of a v3 header.
func (h *Header) Signature() ([]byte, error) {
	if h.ver != Version3 {
		return nil, fmt.Errorf("jeefs: signature is a v3 field, header is v%d", h.ver)
	}
	return copyField(h.data, SignatureOffsetV3, SignatureSizeV3), nil
}

// SetSignature stores up to 64 signature bytes, zero-padding the remainder.
func (h *Header) SetSignature(sig []byte) error {
	if h.ver != Version3 {
		return fmt.Errorf("jeefs: signature is a v3 field, header is v%d", h.ver)
	}
	return setField(h.data, SignatureOffsetV3, SignatureSizeV3, sig)
}

// Timestamp returns the v3 signing timestamp as Unix seconds.
func (h *Header) Timestamp() (int64, error) {
	if h.ver != Version3 {
		return 0, fmt.Errorf("jeefs: timestamp is a v3 field, header is v%d", h.ver)
	}
	return int64(binary.LittleEndian.Uint64(h.data[TimestampOffsetV3:])), nil
}

// SetTimestamp stores the v3 signing timestamp as Unix seconds.
func (h *Header) SetTimestamp(unix int64) error {
	if h.ver != Version3 {
		return fmt.Errorf("jeefs: timestamp is a v3 field, header is v%d", h.ver)
	}
	binary.LittleEndian.PutUint64(h.data[TimestampOffsetV3:], uint64(unix))
	return nil
}

func cString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

func setCString(field []byte, s string, maxLen int) error {
	if len(s) > maxLen {
		return fmt.Errorf("jeefs: string %q exceeds %d bytes", s, maxLen)
	}
	for i := range field {
		field[i] = 0
	}
	copy(field, s)
	return nil
}

func copyField(data []byte, offset, size int) []byte {
	out := make([]byte, size)
	copy(out, data[offset:offset+size])
	return out
}

func setField(data []byte, offset, size int, value []byte) error {
	if len(value) > size {
		return fmt.Errorf("jeefs: value of %d bytes exceeds %d-byte field", len(value), size)
	}
	field := data[offset : offset+size]
	for i := range field {
		field[i] = 0
	}
	copy(field, value)
	return nil
}
