package mfaf

import "unicode/utf8"

// DefaultMimeType is substituted for entries whose metadata omits "m"
// or whose MimeType is explicitly empty; unlike the reference
// implementation, which only defaults when "m" is absent, this port
// treats an empty string the same as absent.
const DefaultMimeType = "application/octet-stream"

// maxAttrDepth is the maximum nesting depth for an entry's attribute
// map; the root map itself counts as depth 1.
const maxAttrDepth = 3

// maxAttrKeyLen is the maximum length, in UTF-8 bytes, of any key
// appearing in an attribute map at any nesting level.
const maxAttrKeyLen = 256

// Entry is a single named byte stream plus its metadata.
//
// Offset and Size are derived fields: callers never set them on a new
// Entry passed to Add. NewEntry sets Size from the content length, Save
// assigns Offset (the content-region position), and Load populates
// both from the decoded metadata.
type Entry struct {
	Name       string
	MimeType   string
	Attributes map[string]any

	Offset uint64
	Size   uint64

	content []byte // in-memory bytes; nil for an entry materialized from a loaded archive
}

// NewEntry builds an Entry ready to be passed to Archive.Add. An empty
// mime normalizes to DefaultMimeType; a nil attrs normalizes to an
// empty map.
func NewEntry(name string, content []byte, mime string, attrs map[string]any) *Entry {
	if mime == "" {
		mime = DefaultMimeType
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &Entry{
		Name:       name,
		MimeType:   mime,
		Attributes: attrs,
		Size:       uint64(len(content)),
		content:    content,
	}
}

// validateAttributes enforces the type, depth, and key-length
// constraints from the metadata model (§4.5). depth is the depth of m
// itself (1 for the entry's top-level attribute map).
func validateAttributes(m map[string]any, depth int) error {
	if depth > maxAttrDepth {
		return rangeErr("a", noIndex, errAttrDepth(depth))
	}
	for k, v := range m {
		if len(k) > maxAttrKeyLen || !utf8.ValidString(k) {
			return rangeErr("a", noIndex, errAttrKey(k))
		}
		switch val := v.(type) {
		case nil, string, bool:
			// allowed as-is
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64:
			// allowed as-is
		case float32, float64:
			// allowed as-is
		case map[string]any:
			if err := validateAttributes(val, depth+1); err != nil {
				return err
			}
		default:
			return rangeErr("a", noIndex, errAttrType(k, v))
		}
	}
	return nil
}

type attrDepthError struct{ depth int }

func (e *attrDepthError) Error() string { return "attribute nesting exceeds max depth" }
func errAttrDepth(depth int) error      { return &attrDepthError{depth: depth} }

type attrKeyError struct{ key string }

func (e *attrKeyError) Error() string { return "attribute key too long or not valid UTF-8: " + e.key }
func errAttrKey(key string) error     { return &attrKeyError{key: key} }

type attrTypeError struct {
	key string
	val any
}

func (e *attrTypeError) Error() string { return "attribute value has unsupported type" }
func errAttrType(key string, val any) error {
	return &attrTypeError{key: key, val: val}
}
