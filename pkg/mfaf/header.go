package mfaf

import "github.com/rs/zerolog/log"

// HeaderSize is the fixed size, in bytes, of the archive header.
const HeaderSize = 64

// ContentOffset is the fixed byte offset of the content region; it is
// always 64, immediately following the header.
const ContentOffset = 64

// MaxVersion is the highest format version this implementation decodes.
const MaxVersion uint16 = 1

// FlagCompressed marks the content region as a single zstd stream.
// FlagEncrypted marks the content and metadata regions as ciphertext.
// Neither transform is implemented by this package (see spec §1); both
// bits are accepted on decode and carried through unchanged, and the
// content and metadata regions are read and written as-is whatever
// they say.
const (
	FlagCompressed uint16 = 1 << 0
	FlagEncrypted  uint16 = 1 << 1
	knownFlagMask  uint16 = FlagCompressed | FlagEncrypted
)

var headerMagic = []byte{0x4D, 0x41, 0x46, 0x46, 0x49, 0x4C, 0x45, 0x01}

// header is the typed view over the first 64 bytes of an archive.
type header struct {
	TotalSize      uint64
	ContentOffset  uint64
	MetadataOffset uint64
	FileCount      uint32
	Version        uint16
	Flags          uint16
}

// encode writes h into a fresh 64-byte buffer in the on-wire layout.
// The reserved region [40..64) is left zero.
func (h *header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], headerMagic)
	writeU64(buf, 8, h.TotalSize)
	writeU64(buf, 16, h.ContentOffset)
	writeU64(buf, 24, h.MetadataOffset)
	writeU32(buf, 32, h.FileCount)
	writeU16(buf, 36, h.Version)
	writeU16(buf, 38, h.Flags)
	// buf[40:64] reserved, already zero.
	return buf
}

// decodeHeader parses and validates a 64-byte header slice against
// invariants I1, I7, I10 plus the flag reservation rule in §4.4.
// strict additionally rejects unknown flag bits and non-zero reserved
// bytes instead of merely warning about them.
func decodeHeader(buf []byte, strict bool) (*header, error) {
	if len(buf) < HeaderSize {
		return nil, sizeErr("header", errOutOfRange(0, HeaderSize, len(buf)))
	}

	ok, err := readMagic(buf, 0, headerMagic)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, magicErr("header.magic", 0)
	}

	h := &header{}
	if h.TotalSize, err = readU64(buf, 8); err != nil {
		return nil, err
	}
	if h.ContentOffset, err = readU64(buf, 16); err != nil {
		return nil, err
	}
	if h.MetadataOffset, err = readU64(buf, 24); err != nil {
		return nil, err
	}
	if h.FileCount, err = readU32(buf, 32); err != nil {
		return nil, err
	}
	if h.Version, err = readU16(buf, 36); err != nil {
		return nil, err
	}
	if h.Flags, err = readU16(buf, 38); err != nil {
		return nil, err
	}

	if h.ContentOffset != ContentOffset {
		return nil, sizeErr("header.contentOffset", nil)
	}
	if h.Version > MaxVersion {
		return nil, versionErr(h.Version, MaxVersion)
	}
	if h.Flags&^knownFlagMask != 0 {
		if strict {
			return nil, versionErr(h.Flags, knownFlagMask)
		}
		log.Warn().Uint16("flags", h.Flags).Msg("mfaf: unknown header flag bits, tolerating for forward compatibility")
	}
	if strict && !isZero(buf, 40, HeaderSize-40) {
		return nil, sizeErr("header.reserved", nil)
	}

	return h, nil
}
