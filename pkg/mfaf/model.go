package mfaf

import "fmt"

// buildEntries validates the decoded raw metadata array against the
// metadata model's rules (§4.5) and returns typed Entry values with
// Offset/Size populated but content left unset — lazy until a caller
// asks for it. metadataOffset bounds the valid content-region range.
func buildEntries(raw []*rawEntry, metadataOffset uint64) ([]*Entry, error) {
	entries := make([]*Entry, 0, len(raw))
	seenNames := make(map[string]int, len(raw))
	type span struct{ start, end uint64 }
	var spans []span

	for i, re := range raw {
		if !re.haveName || re.name == "" {
			return nil, rangeErr(keyName, i, fmt.Errorf("missing or empty name"))
		}
		if !re.haveOffset {
			return nil, rangeErr(keyOffset, i, fmt.Errorf("missing offset"))
		}
		if !re.haveSize {
			return nil, rangeErr(keySize, i, fmt.Errorf("missing size"))
		}
		if prev, dup := seenNames[re.name]; dup {
			_ = prev
			return nil, rangeErr(keyName, i, fmt.Errorf("duplicate name %q", re.name))
		}
		seenNames[re.name] = i

		end := re.offset + re.size
		if end < re.offset {
			return nil, rangeErr(keySize, i, fmt.Errorf("offset+size overflows"))
		}
		if re.offset < ContentOffset || end > metadataOffset {
			return nil, rangeErr(keyOffset, i, fmt.Errorf("content range [%d,%d) outside [%d,%d)", re.offset, end, ContentOffset, metadataOffset))
		}

		// Pairwise-disjoint check against everything seen so far.
		// Zero-length ranges never overlap anything (§4.6 edge case).
		if re.size > 0 {
			for _, s := range spans {
				if re.offset < s.end && s.start < end {
					return nil, rangeErr(keyOffset, i, fmt.Errorf("content range [%d,%d) overlaps [%d,%d)", re.offset, end, s.start, s.end))
				}
			}
			spans = append(spans, span{re.offset, end})
		}

		mime := re.mime
		if mime == "" {
			mime = DefaultMimeType
		}
		attrs := re.attrs
		if attrs == nil {
			attrs = map[string]any{}
		}

		entries = append(entries, &Entry{
			Name:       re.name,
			MimeType:   mime,
			Attributes: attrs,
			Offset:     re.offset,
			Size:       re.size,
		})
	}

	return entries, nil
}
