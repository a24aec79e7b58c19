// Package entry models the records a content host hands to the lifecycle hooks.
//
// Records are decoded as generic JSON objects with numbers kept as json.Number,
// so identifiers such as 42 and "42" both survive a round trip unchanged.
package entry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// IDField is the field holding a record's identifier.
const IDField = "id"

// Entry is a single content record.
type Entry map[string]any

// Decode parses a JSON object into an Entry.
func Decode(data []byte) (Entry, error) {
	var e Entry
	if err := decodeOne(data, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("decode entry: not a JSON object")
	}
	return e, nil
}

// decodeOne decodes exactly one JSON value into v. Trailing data is an error.
func decodeOne(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// ID returns the record identifier as a string.
// The second result is false when the id is missing, null or not a scalar.
func (e Entry) ID() (string, bool) {
	v, ok := e[IDField]
	if !ok || v == nil {
		return "", false
	}
	return idString(v)
}

// Publishable reports whether the record may be indexed: the published
// field is absent, or present and truthy.
func (e Entry) Publishable(field string) bool {
	v, ok := e[field]
	if !ok {
		return true
	}
	return Truthy(v)
}

// Text flattens scalar values into a single body for local full-text indexes.
// Keys are visited in sorted order so the output is deterministic.
func (e Entry) Text() string {
	var parts []string
	appendText(&parts, map[string]any(e))
	return strings.Join(parts, "\n")
}

func appendText(parts *[]string, v any) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			appendText(parts, x[k])
		}
	case Entry:
		appendText(parts, map[string]any(x))
	case []any:
		for _, item := range x {
			appendText(parts, item)
		}
	case string:
		if x != "" {
			*parts = append(*parts, x)
		}
	case json.Number:
		*parts = append(*parts, x.String())
	case float64:
		*parts = append(*parts, strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		*parts = append(*parts, strconv.FormatBool(x))
	}
}

// Truthy applies JavaScript truthiness to a decoded JSON value.
// nil, false, zero, NaN and the empty string are falsy; every other value,
// including empty objects and arrays, is truthy.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return true
		}
		return f != 0 && !math.IsNaN(f)
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	return true
}

func idString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}
