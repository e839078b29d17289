package mfaf

import (
	"io"

	"github.com/tidwall/btree"
)

// DefaultVersion is the format version a freshly created Archive
// writes.
const DefaultVersion uint16 = 1

// Archive is an ordered sequence of entries plus the archive-level
// flags and version words (§3). A fresh Archive is built with New and
// mutated with Add; once Save has been called, the byte image is
// immutable, and a round trip through Load yields a read-only handle
// over it — the core never mutates an Archive after Load (§5).
type Archive struct {
	entries []*Entry
	byName  *btree.BTree
	version uint16
	flags   uint16
	src     ByteSource // nil until Load; content reads go through it
}

func nameLess(a, b interface{}) bool {
	return a.(*Entry).Name < b.(*Entry).Name
}

// New returns an empty Archive at DefaultVersion with no flags set.
func New() *Archive {
	return &Archive{
		byName:  btree.New(nameLess),
		version: DefaultVersion,
	}
}

// Add appends e to the archive. Names must be unique within an
// archive; a duplicate yields NameConflict. e.Attributes is validated
// against the depth/key-length/type rules before it is accepted.
func (a *Archive) Add(e *Entry) error {
	if e.Name == "" {
		return rangeErr(keyName, noIndex, errEmptyName)
	}
	if a.byName.Get(&Entry{Name: e.Name}) != nil {
		return nameConflictErr(e.Name)
	}
	if err := validateAttributes(e.Attributes, 1); err != nil {
		return err
	}
	a.entries = append(a.entries, e)
	a.byName.Set(e)
	return nil
}

// Names returns entry names in file order (insertion order for a
// freshly built archive, decoded metadata order for a loaded one).
func (a *Archive) Names() []string {
	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.Name
	}
	return names
}

// Get returns the entry named name and true, or (nil, false) if no
// such entry exists.
func (a *Archive) Get(name string) (*Entry, bool) {
	item := a.byName.Get(&Entry{Name: name})
	if item == nil {
		return nil, false
	}
	return item.(*Entry), true
}

// Content returns the full byte content of the entry named name,
// reading through the archive's source if it was materialized from
// Load rather than Add.
func (a *Archive) Content(name string) ([]byte, error) {
	e, ok := a.Get(name)
	if !ok {
		return nil, ErrNotFound
	}
	return a.entryContent(e)
}

func (a *Archive) entryContent(e *Entry) ([]byte, error) {
	if e.content != nil || e.Size == 0 {
		return e.content, nil
	}
	if a.src == nil {
		return nil, rangeErr("content", noIndex, errNoSource)
	}
	buf := make([]byte, e.Size)
	if _, err := readFull(a.src, buf, int64(e.Offset)); err != nil {
		return nil, rangeErr("content", noIndex, err)
	}
	return buf, nil
}

// Extract writes the named entry's content to w. A missing name
// yields ErrNotFound, not a format error.
func (a *Archive) Extract(name string, w io.Writer) error {
	content, err := a.Content(name)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

// Save encodes the archive to w in a single streaming pass (§4.6). For
// an archive returned by Load, each entry's content is first read from
// the archive's source; the loaded entries themselves are not modified.
func (a *Archive) Save(w io.Writer) error {
	entries := a.entries
	if a.src != nil {
		entries = make([]*Entry, len(a.entries))
		for i, e := range a.entries {
			content, err := a.entryContent(e)
			if err != nil {
				return err
			}
			c := *e
			c.content = content
			entries[i] = &c
		}
	}
	return encodeTo(w, entries, a.version, a.flags)
}

// Load validates src per §4.7 and returns a read-only Archive backed
// by it. Content is read from src on demand (lazy mode) unless src
// itself already holds everything in memory.
func Load(src ByteSource, opts DecodeOptions) (*Archive, error) {
	entries, version, flags, err := decode(src, opts)
	if err != nil {
		return nil, err
	}
	a := &Archive{
		entries: entries,
		byName:  btree.New(nameLess),
		version: version,
		flags:   flags,
		src:     src,
	}
	for _, e := range entries {
		a.byName.Set(e)
	}
	return a, nil
}

// LoadEager reads r fully into memory before validating it, then
// serves all subsequent content access from that in-memory copy — no
// further reads reach r.
func LoadEager(r io.Reader, opts DecodeOptions) (*Archive, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, sizeErr("source", err)
	}
	return Load(byteSliceSource{b: data}, opts)
}

type emptyNameError struct{}

func (emptyNameError) Error() string { return "entry name is empty" }

var errEmptyName = emptyNameError{}

type noSourceError struct{}

func (noSourceError) Error() string { return "entry has no content and archive has no backing source" }

var errNoSource = noSourceError{}
