package codec

import (
	"encoding/binary"
	"hash/crc32"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderSize(t *testing.T) {
	tests := []struct {
		name    string
		version Version
		want    int
		wantErr bool
	}{
		{name: "v1 is 512 bytes", version: Version1, want: 512},
		{name: "v2 is 256 bytes", version: Version2, want: 256},
		{name: "v3 is 256 bytes", version: Version3, want: 256},
		{name: "v0 rejected", version: 0, wantErr: true},
		{name: "v4 rejected", version: 4, wantErr: true},
		{name: "v255 rejected", version: 255, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, err := HeaderSize(tt.version)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, size)
		})
	}
}

func TestDetectVersion(t *testing.T) {
	prefix := func(magic string, version byte) []byte {
		buf := make([]byte, PrefixSize)
		copy(buf, magic)
		buf[VersionOffset] = version
		return buf
	}

	tests := []struct {
		name    string
		data    []byte
		codec   Codec
		want    Version
		wantErr error
	}{
		{name: "v1", data: prefix(Magic, 1), want: Version1},
		{name: "v2", data: prefix(Magic, 2), want: Version2},
		{name: "v3", data: prefix(Magic, 3), want: Version3},
		{name: "version 0 rejected", data: prefix(Magic, 0), wantErr: ErrUnknownVersion},
		{name: "version 4 rejected", data: prefix(Magic, 4), wantErr: ErrUnknownVersion},
		{name: "bad magic", data: prefix("NOTHOME\x00", 2), wantErr: ErrBadMagic},
		{name: "short buffer", data: prefix(Magic, 2)[:11], wantErr: ErrBufferTooShort},
		{name: "empty buffer", data: nil, wantErr: ErrBufferTooShort},
		{
			name:    "legacy magic rejected by strict codec",
			data:    prefix(LegacyMagic, 2),
			wantErr: ErrBadMagic,
		},
		{
			name:  "legacy magic accepted when configured",
			data:  prefix(LegacyMagic, 2),
			codec: Codec{AcceptLegacyMagic: true},
			want:  Version2,
		},
		{
			name:  "canonical magic still accepted by legacy codec",
			data:  prefix(Magic, 3),
			codec: Codec{AcceptLegacyMagic: true},
			want:  Version3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.codec.DetectVersion(tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestInitRoundTrip(t *testing.T) {
	for _, v := range []Version{Version1, Version2, Version3} {
		size, err := HeaderSize(v)
		require.NoError(t, err)

		buf := make([]byte, size)
		require.NoError(t, Init(buf, v))

		got, err := DetectVersion(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, Magic, string(buf[:MagicLength]))
		assert.NoError(t, VerifyCRC(buf))
	}
}

// Randomizing every field past the 12-byte prefix and recomputing the CRC
// must always verify.
func TestUpdateCRCAfterMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, v := range []Version{Version1, Version2, Version3} {
		size, err := HeaderSize(v)
		require.NoError(t, err)

		for round := 0; round < 16; round++ {
			buf := make([]byte, size)
			require.NoError(t, Init(buf, v))

			for i := PrefixSize; i < size-CRCSize; i++ {
				buf[i] = byte(rng.Intn(256))
			}
			require.NoError(t, UpdateCRC(buf))
			assert.NoError(t, VerifyCRC(buf), "version %d round %d", v, round)
		}
	}
}

// Any single-bit flip in the CRC-covered region must fail verification.
func TestVerifyCRCTamperDetection(t *testing.T) {
	for _, v := range []Version{Version1, Version2, Version3} {
		size, err := HeaderSize(v)
		require.NoError(t, err)

		buf := make([]byte, size)
		require.NoError(t, Init(buf, v))
		require.NoError(t, VerifyCRC(buf))

		// Flip one bit in each covered byte past the 12-byte prefix. A flip
		// in the magic or version byte reports BadMagic or UnknownVersion,
		// also a failure; bytes 9-11 of the prefix are not exercised here.
		for i := PrefixSize; i < size-CRCSize; i++ {
			buf[i] ^= 0x01
			assert.Error(t, VerifyCRC(buf), "flip at %d undetected", i)
			buf[i] ^= 0x01
		}
		assert.NoError(t, VerifyCRC(buf))
	}
}

func TestVerifyCRCRejectsZero(t *testing.T) {
	buf := make([]byte, HeaderSizeV2)
	require.NoError(t, Init(buf, Version2))

	// Zero out the stored CRC. Everything else is intact, yet a zero CRC is
	// never valid.
	binary.LittleEndian.PutUint32(buf[HeaderSizeV2-CRCSize:], 0)
	assert.ErrorIs(t, VerifyCRC(buf), ErrBadCRC)
}

func TestVerifyCRCMismatch(t *testing.T) {
	buf := make([]byte, HeaderSizeV3)
	require.NoError(t, Init(buf, Version3))

	binary.LittleEndian.PutUint32(buf[HeaderSizeV3-CRCSize:], 0xDEADBEEF)
	assert.ErrorIs(t, VerifyCRC(buf), ErrBadCRC)
}

func TestVerifyCRCShortBuffer(t *testing.T) {
	buf := make([]byte, HeaderSizeV2)
	require.NoError(t, Init(buf, Version2))

	assert.ErrorIs(t, VerifyCRC(buf[:HeaderSizeV2-1]), ErrBufferTooShort)
}

func TestCRCScope(t *testing.T) {
	// The stored CRC must be the IEEE CRC32 of every byte before it.
	buf := make([]byte, HeaderSizeV2)
	require.NoError(t, Init(buf, Version2))

	stored := binary.LittleEndian.Uint32(buf[HeaderSizeV2-CRCSize:])
	assert.Equal(t, crc32.ChecksumIEEE(buf[:HeaderSizeV2-CRCSize]), stored)
}

func TestInitShortBuffer(t *testing.T) {
	buf := make([]byte, HeaderSizeV1-1)
	assert.ErrorIs(t, Init(buf, Version1), ErrBufferTooShort)
	assert.ErrorIs(t, Init(buf, 9), ErrUnknownVersion)
}
