package eeprom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemDevice(t *testing.T) {
	dev, err := NewMemDevice(4096)
	require.NoError(t, err)
	assert.Equal(t, uint16(4096), dev.Size())

	_, err = NewMemDevice(0)
	assert.ErrorIs(t, err, ErrBadSize)
}

func TestNewMemDeviceBytes(t *testing.T) {
	image := make([]byte, 512)
	dev, err := NewMemDeviceBytes(image)
	require.NoError(t, err)
	assert.Equal(t, uint16(512), dev.Size())

	// Writes alias the caller's buffer.
	_, err = dev.Write([]byte{0xAA, 0xBB}, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, image[10:12])

	_, err = NewMemDeviceBytes(nil)
	assert.ErrorIs(t, err, ErrBadSize)
	_, err = NewMemDeviceBytes(make([]byte, MaxImageSize+1))
	assert.ErrorIs(t, err, ErrBadSize)
}

func TestMemDeviceReadWrite(t *testing.T) {
	dev, err := NewMemDevice(128)
	require.NoError(t, err)

	payload := []byte{1, 2, 3, 4, 5}
	n, err := dev.Write(payload, 100)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = dev.Read(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.True(t, bytes.Equal(payload, buf))
}

func TestMemDeviceBounds(t *testing.T) {
	dev, err := NewMemDevice(64)
	require.NoError(t, err)

	tests := []struct {
		name  string
		off   uint16
		count int
	}{
		{name: "read past end", off: 60, count: 5},
		{name: "read at size", off: 64, count: 1},
		{name: "write far past end", off: 63, count: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dev.Read(make([]byte, tt.count), tt.off)
			assert.ErrorIs(t, err, ErrOutOfRange)
			_, err = dev.Write(make([]byte, tt.count), tt.off)
			assert.ErrorIs(t, err, ErrOutOfRange)
		})
	}

	// The full span is fine.
	_, err = dev.Read(make([]byte, 64), 0)
	assert.NoError(t, err)
}

func TestMemDeviceClose(t *testing.T) {
	dev, err := NewMemDevice(32)
	require.NoError(t, err)
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close()) // idempotent

	_, err = dev.Read(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = dev.Write(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}
