package eeprom

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFileCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")

	dev, err := OpenFile(path, 4096)
	require.NoError(t, err)
	assert.Equal(t, uint16(4096), dev.Size())

	_, err = dev.Write([]byte{0xDE, 0xAD}, 0)
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	// The image landed on disk, write-through.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, 4096)
	assert.Equal(t, []byte{0xDE, 0xAD}, raw[:2])
}

func TestOpenFileExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 8192), 0o644))

	// size 0 takes the capacity from the file.
	dev, err := OpenFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(8192), dev.Size())
	require.NoError(t, dev.Close())

	// A matching explicit size also opens.
	dev, err = OpenFile(path, 8192)
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	// A mismatched explicit size is rejected, not resized.
	_, err = OpenFile(path, 4096)
	assert.ErrorIs(t, err, ErrBadSize)
}

func TestOpenFileMissingNoSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.bin")
	_, err := OpenFile(path, 0)
	assert.Error(t, err)
}

func TestFileDevicePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")

	dev, err := OpenFile(path, 256)
	require.NoError(t, err)
	payload := []byte("persist me")
	_, err = dev.Write(payload, 100)
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	dev, err = OpenFile(path, 0)
	require.NoError(t, err)
	defer func() { _ = dev.Close() }()

	buf := make([]byte, len(payload))
	_, err = dev.Read(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, payload, buf)
}

func TestFileDeviceBoundsAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	dev, err := OpenFile(path, 64)
	require.NoError(t, err)

	_, err = dev.Read(make([]byte, 65), 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = dev.Write(make([]byte, 2), 63)
	assert.ErrorIs(t, err, ErrOutOfRange)

	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close()) // idempotent

	_, err = dev.Read(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDeviceError(t *testing.T) {
	cause := errors.New("disk gone")

	err := &DeviceError{Op: "flush", Off: 256, Err: cause}
	assert.Equal(t, "eeprom flush at offset 256: disk gone", err.Error())
	assert.True(t, errors.Is(err, cause))

	err = &DeviceError{Op: "open", Off: -1, Err: cause}
	assert.Equal(t, "eeprom open: disk gone", err.Error())
}

func TestOpenFileReportsOperation(t *testing.T) {
	// A missing path with size 0 fails the open itself.
	_, err := OpenFile(filepath.Join(t.TempDir(), "no", "such", "dir.bin"), 0)
	require.Error(t, err)

	var derr *DeviceError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "open", derr.Op)
	assert.Equal(t, -1, derr.Off)
}
