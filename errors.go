package jeefs

import (
	"errors"

	"github.com/jethome-iot/jeefs/internal/codec"
)

// File-system error kinds. Every operation either fully succeeds or reports
// exactly one of these; callers match with errors.Is.
var (
	// ErrFileExists is returned by AddFile when the name is taken.
	ErrFileExists = errors.New("jeefs: file already exists")

	// ErrFileNameTooLong is returned for names longer than FileNameLength.
	ErrFileNameTooLong = errors.New("jeefs: file name too long")

	// ErrFileNameTooShort is returned for empty names.
	ErrFileNameTooShort = errors.New("jeefs: file name too short")

	// ErrFileNameInvalid is returned for names that collide with the empty
	// slot sentinels or contain a NUL byte.
	ErrFileNameInvalid = errors.New("jeefs: file name invalid")

	// ErrFileNotFound is returned when the named file does not exist.
	ErrFileNotFound = errors.New("jeefs: file not found")

	// ErrNotEnoughSpace is returned when a record would not fit the image.
	ErrNotEnoughSpace = errors.New("jeefs: not enough space")

	// ErrBufferInvalid is returned for nil or undersized caller buffers and
	// for empty file data.
	ErrBufferInvalid = errors.New("jeefs: buffer invalid")

	// ErrEepromCorrupted is returned when a linked-list walk meets an
	// impossible offset. The walk short-circuits instead of truncating.
	ErrEepromCorrupted = errors.New("jeefs: eeprom image corrupted")

	// ErrEepromRead wraps backend read failures.
	ErrEepromRead = errors.New("jeefs: eeprom read error")

	// ErrEepromWrite wraps backend write failures.
	ErrEepromWrite = errors.New("jeefs: eeprom write error")
)

// Header codec error kinds, re-exported so callers need only this package.
var (
	ErrBadMagic       = codec.ErrBadMagic
	ErrUnknownVersion = codec.ErrUnknownVersion
	ErrBufferTooShort = codec.ErrBufferTooShort
	ErrBadCRC         = codec.ErrBadCRC
)
