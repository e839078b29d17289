package mfaf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func mustSave(t *testing.T, a *Archive) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, a.Save(&buf))
	return buf.Bytes()
}

func TestRoundTripPreservesEntries(t *testing.T) {
	a := New()
	require.NoError(t, a.Add(NewEntry("one", []byte("AAAA"), "text/plain", map[string]any{"k": "v"})))
	require.NoError(t, a.Add(NewEntry("two", []byte("BBBBBB"), "", nil)))
	require.NoError(t, a.Add(NewEntry("empty", nil, "application/json", map[string]any{})))

	image := mustSave(t, a)

	loaded, err := LoadEager(bytes.NewReader(image), DecodeOptions{})
	require.NoError(t, err)

	require.Equal(t, []string{"one", "two", "empty"}, loaded.Names())

	one, ok := loaded.Get("one")
	require.True(t, ok)
	require.Equal(t, "text/plain", one.MimeType)
	require.Equal(t, map[string]any{"k": "v"}, one.Attributes)
	content, err := loaded.Content("one")
	require.NoError(t, err)
	require.Equal(t, []byte("AAAA"), content)

	two, ok := loaded.Get("two")
	require.True(t, ok)
	require.Equal(t, DefaultMimeType, two.MimeType)

	empty, ok := loaded.Get("empty")
	require.True(t, ok)
	require.Equal(t, uint64(0), empty.Size)
	emptyContent, err := loaded.Content("empty")
	require.NoError(t, err)
	require.Empty(t, emptyContent)
}

func TestSaveIsDeterministic(t *testing.T) {
	build := func() *Archive {
		a := New()
		require.NoError(t, a.Add(NewEntry("a", []byte("hello"), "text/plain", map[string]any{"z": 1, "a": 2, "nested": map[string]any{"b": 1, "a": 2}})))
		require.NoError(t, a.Add(NewEntry("b", []byte("world"), "", nil)))
		return a
	}

	img1 := mustSave(t, build())
	img2 := mustSave(t, build())
	require.Equal(t, img1, img2)
}

func TestAddDuplicateNameConflict(t *testing.T) {
	a := New()
	require.NoError(t, a.Add(NewEntry("dup", []byte("x"), "", nil)))
	err := a.Add(NewEntry("dup", []byte("y"), "", nil))
	require.Error(t, err)
	var mfafErr *Error
	require.ErrorAs(t, err, &mfafErr)
	require.Equal(t, KindNameConflict, mfafErr.Kind)
}

func TestExtractMissingEntry(t *testing.T) {
	a := New()
	require.NoError(t, a.Add(NewEntry("present", []byte("x"), "", nil)))
	image := mustSave(t, a)

	loaded, err := LoadEager(bytes.NewReader(image), DecodeOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = loaded.Extract("missing", &buf)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyArchiveRoundTrips(t *testing.T) {
	a := New()
	image := mustSave(t, a)

	// 64 header + msgpack([]) + 64 trailer.
	require.Equal(t, HeaderSize+1+TrailerSize, len(image)) // empty array is a single 0x90 byte

	loaded, err := LoadEager(bytes.NewReader(image), DecodeOptions{})
	require.NoError(t, err)
	require.Empty(t, loaded.Names())
}

func TestScenarioS1MinimalSingleEntry(t *testing.T) {
	a := New()
	require.NoError(t, a.Add(NewEntry("a", []byte{0x61}, "text/plain", map[string]any{})))
	image := mustSave(t, a)

	require.Equal(t, headerMagic, image[0:8])
	require.Equal(t, byte(0x61), image[64])

	totalSize := len(image)
	require.Equal(t, trailerMagic, image[totalSize-64:totalSize-56])

	tr, err := decodeTrailer(image[totalSize-64:], false)
	require.NoError(t, err)

	meta := image[65:tr.MetadataEnd]
	require.Equal(t, crc32IEEE(meta), tr.Checksum)
}

func TestScenarioS2TwoEntriesRandomAccess(t *testing.T) {
	a := New()
	require.NoError(t, a.Add(NewEntry("one", []byte("AAAA"), "text/plain", nil)))
	require.NoError(t, a.Add(NewEntry("two", []byte("BBBBBB"), "", nil)))
	image := mustSave(t, a)

	loaded, err := LoadEager(bytes.NewReader(image), DecodeOptions{})
	require.NoError(t, err)

	one, _ := loaded.Get("one")
	require.Equal(t, uint64(64), one.Offset)
	require.Equal(t, uint64(4), one.Size)

	two, _ := loaded.Get("two")
	require.Equal(t, uint64(68), two.Offset)
	require.Equal(t, uint64(6), two.Size)

	h, err := decodeHeader(image[0:64], false)
	require.NoError(t, err)
	require.Equal(t, uint64(74), h.MetadataOffset)
}

func TestScenarioS3CRCCorruption(t *testing.T) {
	a := New()
	require.NoError(t, a.Add(NewEntry("a", []byte("hello"), "", nil)))
	image := mustSave(t, a)

	h, err := decodeHeader(image[0:64], false)
	require.NoError(t, err)
	image[h.MetadataOffset] ^= 0x01

	_, err = LoadEager(bytes.NewReader(image), DecodeOptions{})
	require.Error(t, err)
	var mfafErr *Error
	require.ErrorAs(t, err, &mfafErr)
	require.Equal(t, KindCrc, mfafErr.Kind)
}

func TestScenarioS4WrongTrailerMagic(t *testing.T) {
	a := New()
	require.NoError(t, a.Add(NewEntry("a", []byte("hello"), "", nil)))
	image := mustSave(t, a)

	for i := len(image) - 64; i < len(image)-56; i++ {
		image[i] = 0
	}

	_, err := LoadEager(bytes.NewReader(image), DecodeOptions{})
	require.Error(t, err)
	var mfafErr *Error
	require.ErrorAs(t, err, &mfafErr)
	require.Equal(t, KindMagic, mfafErr.Kind)
}

func TestScenarioS6OversizedVersionRejected(t *testing.T) {
	a := New()
	require.NoError(t, a.Add(NewEntry("a", []byte("hello"), "", nil)))
	image := mustSave(t, a)

	writeU16(image, 36, 2)
	// Re-point header/trailer checksums are untouched: version check
	// happens before CRC verification in the decode pipeline.

	_, err := LoadEager(bytes.NewReader(image), DecodeOptions{})
	require.Error(t, err)
	var mfafErr *Error
	require.ErrorAs(t, err, &mfafErr)
	require.Equal(t, KindVersion, mfafErr.Kind)
}

func TestWrongTotalSizeRejected(t *testing.T) {
	a := New()
	require.NoError(t, a.Add(NewEntry("a", []byte("hello"), "", nil)))
	image := mustSave(t, a)
	writeU64(image, 8, uint64(len(image)+1))

	_, err := LoadEager(bytes.NewReader(image), DecodeOptions{})
	require.Error(t, err)
	var mfafErr *Error
	require.ErrorAs(t, err, &mfafErr)
	require.Equal(t, KindSize, mfafErr.Kind)
}

func TestUnknownMetadataKeyIsToleratedAndNotEchoed(t *testing.T) {
	entry := NewEntry("a", []byte("hi"), "text/plain", nil)
	entry.Offset = ContentOffset

	hand := handCraftMetadataWithExtraKey(t, entry)

	h := &header{ContentOffset: ContentOffset, MetadataOffset: ContentOffset + entry.Size, FileCount: 1, Version: 1}
	metadataEnd := h.MetadataOffset + uint64(len(hand))
	h.TotalSize = metadataEnd + TrailerSize
	tr := &trailer{MetadataEnd: metadataEnd, Checksum: crc32IEEE(hand)}

	image := append([]byte{}, h.encode()...)
	image = append(image, entry.content...)
	image = append(image, hand...)
	image = append(image, tr.encode()...)

	loaded, err := LoadEager(bytes.NewReader(image), DecodeOptions{})
	require.NoError(t, err)
	got, ok := loaded.Get("a")
	require.True(t, ok)
	require.Equal(t, "text/plain", got.MimeType)

	resaved := mustSave(t, loaded)
	rh, err := decodeHeader(resaved[0:HeaderSize], false)
	require.NoError(t, err)
	rt, err := decodeTrailer(resaved[len(resaved)-TrailerSize:], false)
	require.NoError(t, err)
	var maps []map[string]any
	require.NoError(t, msgpack.Unmarshal(resaved[rh.MetadataOffset:rt.MetadataEnd], &maps))
	require.Len(t, maps, 1)
	require.Len(t, maps[0], 5)
	require.NotContains(t, maps[0], "x")
}

// handCraftMetadataWithExtraKey encodes a single-entry metadata array
// with an extra, unrecognized top-level key ("x": 42) inside the entry
// map, exercising the forward-compatibility rule from §4.3/§5 (S5).
func handCraftMetadataWithExtraKey(t *testing.T, e *Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.EncodeArrayLen(1))
	require.NoError(t, enc.EncodeMapLen(6))
	require.NoError(t, enc.EncodeString("n"))
	require.NoError(t, enc.EncodeString(e.Name))
	require.NoError(t, enc.EncodeString("o"))
	require.NoError(t, enc.EncodeUint(e.Offset))
	require.NoError(t, enc.EncodeString("s"))
	require.NoError(t, enc.EncodeUint(e.Size))
	require.NoError(t, enc.EncodeString("m"))
	require.NoError(t, enc.EncodeString(e.MimeType))
	require.NoError(t, enc.EncodeString("a"))
	require.NoError(t, enc.EncodeMapLen(0))
	require.NoError(t, enc.EncodeString("x"))
	require.NoError(t, enc.EncodeInt(42))
	return buf.Bytes()
}
