package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"doordashboard/internal/core"
)

const sessionsKey = "sessions"

// Document is the whole backing file: the session list plus any other
// top-level keys, which are preserved byte for byte on save.
//
// A sessions entry that is not a JSON object loads as a nil RawSession and is
// written back unchanged.
type Document struct {
	Sessions []core.RawSession
	Extra    map[string]json.RawMessage

	opaque []json.RawMessage
}

// DecodeDocument parses a backing file. Numbers are kept as json.Number so a
// load/save cycle does not alter them.
func DecodeDocument(r io.Reader) (Document, error) {
	var top map[string]json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&top); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}

	doc := Document{Extra: make(map[string]json.RawMessage)}
	for k, v := range top {
		if k != sessionsKey {
			doc.Extra[k] = v
		}
	}

	raw, ok := top[sessionsKey]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		doc.Sessions = []core.RawSession{}
		return doc, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Document{}, fmt.Errorf("decode sessions: %w", err)
	}

	doc.Sessions = make([]core.RawSession, len(entries))
	for i, entry := range entries {
		if !isObject(entry) {
			doc.setOpaque(i, entry)
			continue
		}
		ed := json.NewDecoder(bytes.NewReader(entry))
		ed.UseNumber()
		var rec core.RawSession
		if err := ed.Decode(&rec); err != nil {
			return Document{}, fmt.Errorf("decode sessions: entry %d: %w", i, err)
		}
		doc.Sessions[i] = rec
	}
	return doc, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func (d *Document) setOpaque(i int, raw json.RawMessage) {
	if len(d.opaque) <= i {
		d.opaque = append(d.opaque, make([]json.RawMessage, i+1-len(d.opaque))...)
	}
	d.opaque[i] = raw
}

// Remove deletes the session at i and returns it. Later sessions shift down.
func (d *Document) Remove(i int) core.RawSession {
	removed := d.Sessions[i]
	d.Sessions = append(d.Sessions[:i], d.Sessions[i+1:]...)
	if i < len(d.opaque) {
		d.opaque = append(d.opaque[:i], d.opaque[i+1:]...)
	}
	return removed
}

// Encode writes the document as indented JSON.
func (d Document) Encode(w io.Writer) error {
	out := make(map[string]any, len(d.Extra)+1)
	for k, v := range d.Extra {
		out[k] = v
	}
	sessions := make([]any, len(d.Sessions))
	for i, rec := range d.Sessions {
		switch {
		case rec != nil:
			sessions[i] = rec
		case i < len(d.opaque) && d.opaque[i] != nil:
			sessions[i] = d.opaque[i]
		}
	}
	out[sessionsKey] = sessions

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
