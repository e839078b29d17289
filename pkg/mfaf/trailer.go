package mfaf

// TrailerSize is the fixed size, in bytes, of the archive trailer.
const TrailerSize = 64

var trailerMagic = []byte{0x45, 0x4E, 0x44, 0x4D, 0x41, 0x46, 0x00, 0x00}

// trailer is the typed view over the final 64 bytes of an archive.
type trailer struct {
	MetadataEnd uint64
	Checksum    uint32
}

// encode writes t into a fresh 64-byte buffer in the on-wire layout.
// The reserved region [-44..0) is left zero.
func (t *trailer) encode() []byte {
	buf := make([]byte, TrailerSize)
	copy(buf[0:8], trailerMagic)
	writeU64(buf, 8, t.MetadataEnd)
	writeU32(buf, 16, t.Checksum)
	// buf[20:64] reserved, already zero.
	return buf
}

// decodeTrailer parses and validates a 64-byte trailer slice against
// invariant I7. The metadataEnd/checksum fields are returned as-is;
// cross-checks against the header live in the decoder, which is the
// only place that has both views at once.
func decodeTrailer(buf []byte, strict bool) (*trailer, error) {
	if len(buf) < TrailerSize {
		return nil, sizeErr("trailer", errOutOfRange(0, TrailerSize, len(buf)))
	}

	ok, err := readMagic(buf, 0, trailerMagic)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, magicErr("trailer.magic", 0)
	}

	t := &trailer{}
	if t.MetadataEnd, err = readU64(buf, 8); err != nil {
		return nil, err
	}
	if t.Checksum, err = readU32(buf, 16); err != nil {
		return nil, err
	}

	if strict && !isZero(buf, 20, TrailerSize-20) {
		return nil, sizeErr("trailer.reserved", nil)
	}

	return t, nil
}
