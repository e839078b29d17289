package mfaf

import (
	"bytes"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Metadata key names, exactly as they appear on the wire (§4.3).
const (
	keyName   = "n"
	keyOffset = "o"
	keySize   = "s"
	keyMime   = "m"
	keyAttrs  = "a"
)

// encodeMetadata serializes entries, in order, as a MessagePack array
// of maps. It always emits all five keys (the canonical encoder does
// not omit defaulted fields), and encodes attribute maps with keys in
// sorted order so that Save is byte-for-byte deterministic (P2) rather
// than depending on Go's randomized map iteration.
func encodeMetadata(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeArrayLen(len(entries)); err != nil {
		return nil, msgpackErr("array", err)
	}
	for i, e := range entries {
		if err := encodeEntryMap(enc, e); err != nil {
			return nil, &Error{Kind: KindMessagePack, Index: i, Cause: err}
		}
	}
	return buf.Bytes(), nil
}

func encodeEntryMap(enc *msgpack.Encoder, e *Entry) error {
	if err := enc.EncodeMapLen(5); err != nil {
		return err
	}
	if err := enc.EncodeString(keyName); err != nil {
		return err
	}
	if err := enc.EncodeString(e.Name); err != nil {
		return err
	}
	if err := enc.EncodeString(keyOffset); err != nil {
		return err
	}
	if err := enc.EncodeUint(e.Offset); err != nil {
		return err
	}
	if err := enc.EncodeString(keySize); err != nil {
		return err
	}
	if err := enc.EncodeUint(e.Size); err != nil {
		return err
	}
	if err := enc.EncodeString(keyMime); err != nil {
		return err
	}
	if err := enc.EncodeString(e.MimeType); err != nil {
		return err
	}
	if err := enc.EncodeString(keyAttrs); err != nil {
		return err
	}
	return encodeAttrValue(enc, e.Attributes)
}

// encodeAttrValue encodes a single attribute value deterministically.
// Nested maps have their keys sorted before encoding.
func encodeAttrValue(enc *msgpack.Encoder, v any) error {
	switch val := v.(type) {
	case nil:
		return enc.EncodeNil()
	case string:
		return enc.EncodeString(val)
	case bool:
		return enc.EncodeBool(val)
	case int:
		return enc.EncodeInt(int64(val))
	case int8:
		return enc.EncodeInt(int64(val))
	case int16:
		return enc.EncodeInt(int64(val))
	case int32:
		return enc.EncodeInt(int64(val))
	case int64:
		return enc.EncodeInt(val)
	case uint:
		return enc.EncodeUint(uint64(val))
	case uint8:
		return enc.EncodeUint(uint64(val))
	case uint16:
		return enc.EncodeUint(uint64(val))
	case uint32:
		return enc.EncodeUint(uint64(val))
	case uint64:
		return enc.EncodeUint(val)
	case float32:
		return enc.EncodeFloat32(val)
	case float64:
		return enc.EncodeFloat64(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if err := enc.EncodeMapLen(len(keys)); err != nil {
			return err
		}
		for _, k := range keys {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := encodeAttrValue(enc, val[k]); err != nil {
				return err
			}
		}
		return nil
	default:
		return errAttrType("", v)
	}
}

// rawEntry is the result of decoding one element of the metadata array,
// before the decoder cross-checks it against the content region.
type rawEntry struct {
	haveName, haveOffset, haveSize bool
	name                           string
	offset, size                   uint64
	mime                           string
	attrs                          map[string]any
}

// decodeMetadata parses the MessagePack array of entry maps. Unknown
// keys at the top level are skipped, not errors (forward
// compatibility, §4.3/P7). It does not cross-check offsets/sizes
// against the content region — that is the metadata model's job,
// applied by the decoder once it knows metadataOffset.
func decodeMetadata(buf []byte) ([]*rawEntry, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(buf))

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, msgpackErr("array", err)
	}
	if n < 0 {
		return nil, msgpackErr("array", errNilArray)
	}

	out := make([]*rawEntry, 0, n)
	for i := 0; i < n; i++ {
		re, err := decodeEntryMap(dec)
		if err != nil {
			if typed, ok := err.(*Error); ok {
				typed.Index = i
				return nil, typed
			}
			return nil, &Error{Kind: KindMessagePack, Index: i, Cause: err}
		}
		out = append(out, re)
	}
	return out, nil
}

func decodeEntryMap(dec *msgpack.Decoder) (*rawEntry, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	re := &rawEntry{}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		switch key {
		case keyName:
			if re.name, err = dec.DecodeString(); err != nil {
				return nil, err
			}
			re.haveName = true
		case keyOffset:
			if re.offset, err = dec.DecodeUint64(); err != nil {
				return nil, err
			}
			re.haveOffset = true
		case keySize:
			if re.size, err = dec.DecodeUint64(); err != nil {
				return nil, err
			}
			re.haveSize = true
		case keyMime:
			if re.mime, err = dec.DecodeString(); err != nil {
				return nil, err
			}
		case keyAttrs:
			v, err := dec.DecodeInterface()
			if err != nil {
				return nil, err
			}
			attrs, err := asAttrMap(v)
			if err != nil {
				return nil, err
			}
			re.attrs = attrs
		default:
			// Unknown key: decode and discard the value so the
			// stream stays aligned, per the forward-compatibility
			// rule in §4.3.
			if _, err := dec.DecodeInterface(); err != nil {
				return nil, err
			}
		}
	}
	return re, nil
}

// asAttrMap normalizes the generic value msgpack decodes "a" into, and
// validates it against the type/depth/key-length rules in one pass.
func asAttrMap(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := normalizeAttrMap(v)
	if !ok {
		return nil, errAttrType(keyAttrs, v)
	}
	if err := validateAttributes(m, 1); err != nil {
		return nil, err
	}
	return m, nil
}

// normalizeAttrMap converts the map[string]interface{} (or
// map[interface{}]interface{}, depending on decoder configuration)
// msgpack produces into map[string]any recursively, rejecting
// non-string keys.
func normalizeAttrMap(v any) (map[string]any, bool) {
	switch mm := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(mm))
		for k, val := range mm {
			out[k] = normalizeAttrValue(val)
		}
		return out, true
	case map[interface{}]interface{}:
		out := make(map[string]any, len(mm))
		for k, val := range mm {
			sk, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[sk] = normalizeAttrValue(val)
		}
		return out, true
	default:
		return nil, false
	}
}

func normalizeAttrValue(v any) any {
	switch val := v.(type) {
	case map[string]any, map[interface{}]interface{}:
		m, ok := normalizeAttrMap(val)
		if !ok {
			return val
		}
		return m
	default:
		return val
	}
}

var errNilArray = msgpackArrayError{}

type msgpackArrayError struct{}

func (msgpackArrayError) Error() string { return "metadata root is not an array" }
