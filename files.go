package jeefs

import (
	"fmt"
	"hash/crc32"
	"log/slog"
	"math"
)

// ListFiles walks the record list and returns the stored file names in
// on-image order. A positive maxFiles caps the result; maxFiles <= 0 lists
// everything.
func (fs *FS) ListFiles(maxFiles int) ([]string, error) {
	start, err := fs.filesStart()
	if err != nil {
		return nil, err
	}
	var names []string
	err = fs.walk(start, func(off uint16, rec fileRecord) bool {
		names = append(names, rec.fileName())
		return maxFiles <= 0 || len(names) < maxFiles
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ReadFile copies the named file's data into buf and returns the data size.
// buf must hold the whole file; the stored data CRC is not checked here, use
// VerifyFile for that.
func (fs *FS) ReadFile(name string, buf []byte) (int, error) {
	if err := validateFileName(name); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: nil or empty read buffer", ErrBufferInvalid)
	}

	start, err := fs.filesStart()
	if err != nil {
		return 0, err
	}
	rec, addr, found, err := fs.findFile(start, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %q", ErrFileNotFound, name)
	}
	if len(buf) < int(rec.dataSize) {
		return 0, fmt.Errorf("%w: file is %d bytes, buffer holds %d", ErrBufferInvalid, rec.dataSize, len(buf))
	}
	if _, err := fs.dev.Read(buf[:rec.dataSize], addr+FileHeaderSize); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEepromRead, err)
	}
	return int(rec.dataSize), nil
}

// WriteFile overwrites an existing file. Equal-size writes happen in place
// and keep every record offset stable; a size change replaces the file via
// delete and add, after checking that the new size will fit.
func (fs *FS) WriteFile(name string, data []byte) (int, error) {
	if err := validateFileName(name); err != nil {
		return 0, err
	}
	if err := validateFileData(data); err != nil {
		return 0, err
	}

	start, err := fs.filesStart()
	if err != nil {
		return 0, err
	}
	rec, addr, found, err := fs.findFile(start, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %q", ErrFileNotFound, name)
	}

	if int(rec.dataSize) == len(data) {
		if _, err := fs.dev.Write(data, addr+FileHeaderSize); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrEepromWrite, err)
		}
		rec.dataCRC = crc32.ChecksumIEEE(data)
		if err := fs.writeRecord(addr, &rec); err != nil {
			return 0, err
		}
		return len(data), nil
	}

	// Replacement must not destroy the old file when the new one cannot
	// fit, so size the post-delete image before deleting.
	_, _, _, listEnd, err := fs.findInsertion(start)
	if err != nil {
		return 0, err
	}
	afterDelete := int(listEnd) - (FileHeaderSize + int(rec.dataSize))
	if afterDelete+FileHeaderSize+len(data) > int(fs.dev.Size()) {
		return 0, fmt.Errorf("%w: replacing %q with %d bytes", ErrNotEnoughSpace, name, len(data))
	}

	fs.logDebug("write: size change, replacing file",
		slog.String("name", name),
		slog.Int("oldSize", int(rec.dataSize)),
		slog.Int("newSize", len(data)))

	if err := fs.DeleteFile(name); err != nil {
		return 0, err
	}
	return fs.AddFile(name, data)
}

// AddFile creates a new file at the end of the record list and returns the
// number of data bytes written.
func (fs *FS) AddFile(name string, data []byte) (int, error) {
	if err := validateFileName(name); err != nil {
		return 0, err
	}
	if err := validateFileData(data); err != nil {
		return 0, err
	}

	start, err := fs.filesStart()
	if err != nil {
		return 0, err
	}
	if _, _, found, err := fs.findFile(start, name); err != nil {
		return 0, err
	} else if found {
		return 0, fmt.Errorf("%w: %q", ErrFileExists, name)
	}

	prevAddr, prevRec, hasPrev, newOffset, err := fs.findInsertion(start)
	if err != nil {
		return 0, err
	}
	if int(newOffset)+FileHeaderSize+len(data) > int(fs.dev.Size()) {
		return 0, fmt.Errorf("%w: %q needs %d bytes at offset %d", ErrNotEnoughSpace, name, FileHeaderSize+len(data), newOffset)
	}

	// Link the previous tail first, then lay down the new record header,
	// then its data. A crash in between leaves a scannable image.
	if hasPrev {
		prevRec.next = prevAddr + FileHeaderSize + prevRec.dataSize
		if err := fs.writeRecord(prevAddr, &prevRec); err != nil {
			return 0, err
		}
	}

	var rec fileRecord
	copy(rec.name[:FileNameLength], name)
	rec.dataSize = uint16(len(data))
	rec.dataCRC = crc32.ChecksumIEEE(data)
	rec.next = 0
	if err := fs.writeRecord(newOffset, &rec); err != nil {
		return 0, err
	}
	if _, err := fs.dev.Write(data, newOffset+FileHeaderSize); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEepromWrite, err)
	}

	fs.logDebug("add: file created",
		slog.String("name", name),
		slog.Int("offset", int(newOffset)),
		slog.Int("size", len(data)))
	return len(data), nil
}

// DeleteFile removes the named file and compacts the image: every following
// record slides down by the deleted record's full length, each moved
// record's next pointer is rewritten, and the freed tail is zero-filled.
func (fs *FS) DeleteFile(name string) error {
	if err := validateFileName(name); err != nil {
		return err
	}

	start, err := fs.filesStart()
	if err != nil {
		return err
	}
	rec, addr, found, err := fs.findFile(start, name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrFileNotFound, name)
	}

	shift := FileHeaderSize + int(rec.dataSize)
	size := int(fs.dev.Size())

	fs.logDebug("delete: compacting",
		slog.String("name", name),
		slog.Int("offset", int(addr)),
		slog.Int("shift", shift))

	// Slide [addr+shift, size) down in windows of shift bytes. Source and
	// destination never overlap because dst < src by exactly shift.
	buf := make([]byte, shift)
	for readAddr := int(addr) + shift; readAddr < size; {
		n := shift
		if readAddr+n > size {
			n = size - readAddr
		}
		if _, err := fs.dev.Read(buf[:n], uint16(readAddr)); err != nil {
			return fmt.Errorf("%w: %w", ErrEepromRead, err)
		}
		if _, err := fs.dev.Write(buf[:n], uint16(readAddr-shift)); err != nil {
			return fmt.Errorf("%w: %w", ErrEepromWrite, err)
		}
		readAddr += n
	}

	// The last shift bytes are now stale copies; stamp them empty.
	for i := range buf {
		buf[i] = emptyByteZero
	}
	if _, err := fs.dev.Write(buf, uint16(size-shift)); err != nil {
		return fmt.Errorf("%w: %w", ErrEepromWrite, err)
	}

	return fs.relink(start, addr, uint16(shift))
}

// VerifyFile recomputes the named file's data CRC32 and compares it to the
// stored value. Reads never do this implicitly.
func (fs *FS) VerifyFile(name string) error {
	if err := validateFileName(name); err != nil {
		return err
	}
	start, err := fs.filesStart()
	if err != nil {
		return err
	}
	rec, addr, found, err := fs.findFile(start, name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrFileNotFound, name)
	}

	buf := make([]byte, rec.dataSize)
	if _, err := fs.dev.Read(buf, addr+FileHeaderSize); err != nil {
		return fmt.Errorf("%w: %w", ErrEepromRead, err)
	}
	if computed := crc32.ChecksumIEEE(buf); computed != rec.dataCRC {
		return fmt.Errorf("%w: file %q stored %#08x, computed %#08x", ErrBadCRC, name, rec.dataCRC, computed)
	}
	return nil
}

// validateFileData enforces the data rules shared by AddFile and WriteFile:
// files are never empty and the size must fit the 16-bit size field.
func validateFileData(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty file data", ErrBufferInvalid)
	}
	if len(data) >= math.MaxUint16 {
		return fmt.Errorf("%w: %d data bytes exceed the 16-bit size field", ErrBufferInvalid, len(data))
	}
	return nil
}

// findInsertion walks to the end of the record list, keeping the previous
// record so the caller can relink it. newOffset is where the next record
// belongs: files-start on an empty image, otherwise right after the tail
// record's data. A tail whose next pointer breaks contiguity is treated as
// the end of the list, matching the empty-slot rules.
func (fs *FS) findInsertion(filesStart uint16) (prevAddr uint16, prevRec fileRecord, hasPrev bool, newOffset uint16, err error) {
	size := int(fs.dev.Size())
	cur := filesStart
	for {
		rec, ok, rerr := fs.readRecord(cur)
		if rerr != nil {
			return 0, fileRecord{}, false, 0, rerr
		}
		if !ok || rec.isEmpty() {
			return prevAddr, prevRec, hasPrev, cur, nil
		}
		end := int(cur) + FileHeaderSize + int(rec.dataSize)
		if end > size {
			return 0, fileRecord{}, false, 0,
				fmt.Errorf("%w: record at %d overruns image size %d", ErrEepromCorrupted, cur, size)
		}
		prevAddr, prevRec, hasPrev = cur, rec, true
		if rec.next == 0 || int(rec.next) != end {
			return prevAddr, prevRec, hasPrev, uint16(end), nil
		}
		cur = rec.next
	}
}

// relink rewrites the next pointers of records moved down by a compaction.
// Records at or past movedFrom shifted by exactly shift bytes, so their
// stored links are stale by the same amount.
func (fs *FS) relink(filesStart, movedFrom, shift uint16) error {
	size := int(fs.dev.Size())
	cur := filesStart
	for {
		rec, ok, err := fs.readRecord(cur)
		if err != nil {
			return err
		}
		if !ok || rec.isEmpty() {
			return nil
		}
		end := int(cur) + FileHeaderSize + int(rec.dataSize)
		if end > size {
			return fmt.Errorf("%w: record at %d overruns image size %d", ErrEepromCorrupted, cur, size)
		}
		if cur >= movedFrom && rec.next != 0 {
			if rec.next < shift {
				return fmt.Errorf("%w: record at %d links to %d, below shift %d", ErrEepromCorrupted, cur, rec.next, shift)
			}
			rec.next -= shift
			if err := fs.writeRecord(cur, &rec); err != nil {
				return err
			}
		}
		if rec.next == 0 {
			return nil
		}
		if int(rec.next) != end {
			return fmt.Errorf("%w: record at %d links to %d, expected %d", ErrEepromCorrupted, cur, rec.next, end)
		}
		cur = rec.next
	}
}
