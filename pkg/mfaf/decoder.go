package mfaf

import (
	"io"

	"github.com/rs/zerolog/log"
)

// ByteSource provides random-access reads over an archive image of a
// known length. *os.File satisfies it directly; pkg/storage provides
// implementations backed by local files and S3 objects.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// byteSliceSource adapts an in-memory byte slice to ByteSource, used
// by the eager decode path (and by tests).
type byteSliceSource struct{ b []byte }

func (s byteSliceSource) Size() int64 { return int64(len(s.b)) }

func (s byteSliceSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s.b)) {
		return 0, io.EOF
	}
	n := copy(p, s.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// DecodeOptions configures a single Load call.
type DecodeOptions struct {
	// Strict rejects unknown header flag bits and non-zero reserved
	// regions instead of tolerating them (§4.4, §9).
	Strict bool
}

const minArchiveSize = HeaderSize + TrailerSize

// decode runs the full validation pipeline from §4.7 against src and
// returns the entries and archive-level fields. It does not decide
// whether content access is eager or lazy — that is purely a property
// of src (an in-memory slice vs. a real random-access handle).
func decode(src ByteSource, opts DecodeOptions) (entries []*Entry, version uint16, flags uint16, err error) {
	size := src.Size()
	if size < minArchiveSize {
		return nil, 0, 0, sizeErr("totalSize", errOutOfRange(0, minArchiveSize, int(size)))
	}

	trailerBuf := make([]byte, TrailerSize)
	if _, err := readFull(src, trailerBuf, size-TrailerSize); err != nil {
		return nil, 0, 0, sizeErr("trailer", err)
	}
	t, err := decodeTrailer(trailerBuf, opts.Strict)
	if err != nil {
		return nil, 0, 0, err
	}

	headerBuf := make([]byte, HeaderSize)
	if _, err := readFull(src, headerBuf, 0); err != nil {
		return nil, 0, 0, sizeErr("header", err)
	}
	h, err := decodeHeader(headerBuf, opts.Strict)
	if err != nil {
		return nil, 0, 0, err
	}

	if h.TotalSize != uint64(size) {
		return nil, 0, 0, sizeErr("totalSize", nil)
	}
	if t.MetadataEnd+TrailerSize != uint64(size) {
		return nil, 0, 0, sizeErr("metadataEnd", nil)
	}
	if !(ContentOffset <= h.MetadataOffset && h.MetadataOffset <= t.MetadataEnd && t.MetadataEnd <= uint64(size)-TrailerSize) {
		return nil, 0, 0, sizeErr("metadataOffset", nil)
	}

	metaLen := t.MetadataEnd - h.MetadataOffset
	meta := make([]byte, metaLen)
	if _, err := readFull(src, meta, int64(h.MetadataOffset)); err != nil {
		return nil, 0, 0, sizeErr("metadata", err)
	}

	checksum := crc32IEEE(meta)
	if checksum != t.Checksum {
		return nil, 0, 0, crcErr(t.Checksum, checksum)
	}

	raw, err := decodeMetadata(meta)
	if err != nil {
		return nil, 0, 0, err
	}
	if uint32(len(raw)) != h.FileCount {
		return nil, 0, 0, sizeErr("fileCount", nil)
	}

	entries, err = buildEntries(raw, h.MetadataOffset)
	if err != nil {
		return nil, 0, 0, err
	}

	log.Debug().
		Int("entries", len(entries)).
		Uint64("metadataOffset", h.MetadataOffset).
		Uint64("totalSize", h.TotalSize).
		Msg("mfaf: decoded archive")

	return entries, h.Version, h.Flags, nil
}

func readFull(src ByteSource, buf []byte, off int64) (int, error) {
	n, err := src.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return n, err
	}
	if n < len(buf) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}
