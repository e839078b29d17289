package mfaf

import (
	"io"

	"github.com/rs/zerolog/log"
)

// encodeTo writes entries as a complete MFAF image to w: header, then
// each entry's content concatenated, then the MessagePack metadata
// region, then the trailer. It streams the content region straight
// through to w rather than buffering it — the only buffer held for
// the whole call is the metadata region, whose size is known before
// any byte reaches w (§4.6, §5).
func encodeTo(w io.Writer, entries []*Entry, version, flags uint16) error {
	var cursor uint64 = ContentOffset
	for i, e := range entries {
		e.Offset = cursor
		if cursor+e.Size < cursor {
			return rangeErr(keySize, i, errOverflow)
		}
		cursor += e.Size
	}
	metadataOffset := cursor

	meta, err := encodeMetadata(entries)
	if err != nil {
		return err
	}
	metadataEnd := metadataOffset + uint64(len(meta))
	totalSize := metadataEnd + TrailerSize
	checksum := crc32IEEE(meta)

	log.Debug().
		Int("entries", len(entries)).
		Uint64("metadataOffset", metadataOffset).
		Uint64("totalSize", totalSize).
		Msg("mfaf: encoding archive")

	h := &header{
		TotalSize:      totalSize,
		ContentOffset:  ContentOffset,
		MetadataOffset: metadataOffset,
		FileCount:      uint32(len(entries)),
		Version:        version,
		Flags:          flags,
	}
	if _, err := w.Write(h.encode()); err != nil {
		return sizeErr("header", err)
	}

	for i, e := range entries {
		if _, err := w.Write(e.content); err != nil {
			return rangeErr("content", i, err)
		}
	}

	if _, err := w.Write(meta); err != nil {
		return sizeErr("metadata", err)
	}

	t := &trailer{MetadataEnd: metadataEnd, Checksum: checksum}
	if _, err := w.Write(t.encode()); err != nil {
		return sizeErr("trailer", err)
	}

	return nil
}

type overflowError struct{}

func (overflowError) Error() string { return "content offset overflow" }

var errOverflow = overflowError{}
