/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package prefs

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Keys written by the control plane.
const (
	KeyEnabled         = "enabled"
	KeySpoofingEnabled = "spoofing_enabled"
	KeyLatitude        = "latitude"
	KeyLongitude       = "longitude"
	KeyAltitude        = "altitude"
)

// ValueKind is the element name a preference is stored under.
type ValueKind string

const (
	KindString  ValueKind = "string"
	KindBoolean ValueKind = "boolean"
	KindFloat   ValueKind = "float"
	KindInt     ValueKind = "int"
	KindLong    ValueKind = "long"
)

const xmlHeader = "<?xml version='1.0' encoding='utf-8' standalone='yes' ?>\n"

// Entry is one named preference. Value holds the textual form.
type Entry struct {
	Name  string
	Kind  ValueKind
	Value string
}

// Document is a decoded preferences file. Entries keep insertion order.
type Document struct {
	entries []Entry
	index   map[string]int
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.entries)
}

// Keys returns the entry names, sorted.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		keys = append(keys, e.Name)
	}

	sort.Strings(keys)

	return keys
}

// Get returns the entry stored under name.
func (d *Document) Get(name string) (Entry, bool) {
	i, ok := d.index[name]
	if !ok {
		return Entry{}, false
	}

	return d.entries[i], true
}

// Set stores e, replacing any entry of the same name in place.
func (d *Document) Set(e Entry) {
	if i, ok := d.index[e.Name]; ok {
		d.entries[i] = e
		return
	}

	d.index[e.Name] = len(d.entries)
	d.entries = append(d.entries, e)
}

// Remove deletes name if present.
func (d *Document) Remove(name string) {
	i, ok := d.index[name]
	if !ok {
		return
	}

	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	delete(d.index, name)

	for j := i; j < len(d.entries); j++ {
		d.index[d.entries[j].Name] = j
	}
}

func (d *Document) PutString(name, value string) {
	d.Set(Entry{Name: name, Kind: KindString, Value: value})
}

func (d *Document) PutBool(name string, value bool) {
	d.Set(Entry{Name: name, Kind: KindBoolean, Value: strconv.FormatBool(value)})
}

func (d *Document) PutFloat(name string, value float32) {
	d.Set(Entry{Name: name, Kind: KindFloat, Value: strconv.FormatFloat(float64(value), 'f', -1, 32)})
}

// String returns a string entry.
func (d *Document) String(name string) (string, bool) {
	e, ok := d.Get(name)
	if !ok || e.Kind != KindString {
		return "", false
	}

	return e.Value, true
}

// Bool returns a boolean entry.
func (d *Document) Bool(name string) (bool, bool) {
	e, ok := d.Get(name)
	if !ok || e.Kind != KindBoolean {
		return false, false
	}

	b, err := strconv.ParseBool(e.Value)
	if err != nil {
		return false, false
	}

	return b, true
}

// Float returns a float entry.
func (d *Document) Float(name string) (float32, bool) {
	e, ok := d.Get(name)
	if !ok || e.Kind != KindFloat {
		return 0, false
	}

	f, err := strconv.ParseFloat(e.Value, 32)
	if err != nil {
		return 0, false
	}

	return float32(f), true
}

// Encode writes the document in the platform's shared-preferences layout.
func (d *Document) Encode(w io.Writer) error {
	var buf bytes.Buffer

	buf.WriteString(xmlHeader)

	if len(d.entries) == 0 {
		buf.WriteString("<map />\n")
		_, err := w.Write(buf.Bytes())

		return err
	}

	buf.WriteString("<map>\n")

	for _, e := range d.entries {
		buf.WriteString("    <")
		buf.WriteString(string(e.Kind))
		buf.WriteString(` name="`)
		escape(&buf, e.Name)
		buf.WriteString(`"`)

		if e.Kind == KindString {
			buf.WriteString(">")
			escape(&buf, e.Value)
			buf.WriteString("</string>\n")

			continue
		}

		buf.WriteString(` value="`)
		escape(&buf, e.Value)
		buf.WriteString("\" />\n")
	}

	buf.WriteString("</map>\n")

	_, err := w.Write(buf.Bytes())

	return err
}

func escape(buf *bytes.Buffer, s string) {
	_ = xml.EscapeText(buf, []byte(s))
}

// Decode parses a shared-preferences document. Unknown element kinds, entries
// without a name, and values that do not parse as their kind are errors.
func Decode(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := NewDocument()
	inMap := false
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inMap {
				if t.Name.Local != "map" {
					return nil, fmt.Errorf("%w: found <%s>", ErrNoRoot, t.Name.Local)
				}

				inMap, sawRoot = true, true

				continue
			}

			entry, skip, err := decodeEntry(dec, t)
			if err != nil {
				return nil, err
			}

			if !skip {
				doc.Set(entry)
			}
		case xml.EndElement:
			if t.Name.Local == "map" {
				inMap = false
			}
		}
	}

	if !sawRoot {
		return nil, ErrNoRoot
	}

	return doc, nil
}

func decodeEntry(dec *xml.Decoder, start xml.StartElement) (Entry, bool, error) {
	name := attr(start, "name")
	if name == "" {
		return Entry{}, false, fmt.Errorf("%w: <%s> without name", ErrMalformedEntry, start.Name.Local)
	}

	kind := ValueKind(start.Name.Local)

	switch kind {
	case KindString:
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return Entry{}, false, fmt.Errorf("%w: %s: %w", ErrMalformedEntry, name, err)
		}

		return Entry{Name: name, Kind: kind, Value: text}, false, nil
	case KindBoolean, KindFloat, KindInt, KindLong:
		value := strings.TrimSpace(attr(start, "value"))
		if err := checkValue(kind, value); err != nil {
			return Entry{}, false, fmt.Errorf("%w: %s: %w", ErrMalformedEntry, name, err)
		}

		if err := dec.Skip(); err != nil {
			return Entry{}, false, fmt.Errorf("%w: %s: %w", ErrMalformedEntry, name, err)
		}

		return Entry{Name: name, Kind: kind, Value: value}, false, nil
	case "null", "set":
		return Entry{}, true, dec.Skip()
	default:
		return Entry{}, false, fmt.Errorf("%w: unknown kind <%s>", ErrMalformedEntry, kind)
	}
}

func checkValue(kind ValueKind, value string) error {
	var err error

	switch kind {
	case KindBoolean:
		_, err = strconv.ParseBool(value)
	case KindFloat:
		_, err = strconv.ParseFloat(value, 32)
	case KindInt:
		_, err = strconv.ParseInt(value, 10, 32)
	case KindLong:
		_, err = strconv.ParseInt(value, 10, 64)
	case KindString:
	}

	return err
}

func attr(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}

	return ""
}
