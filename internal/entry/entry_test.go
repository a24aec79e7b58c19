package entry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"empty string", "", false},
		{"date string", "2024-01-01T00:00:00Z", true},
		{"zero number", json.Number("0"), false},
		{"zero float literal", json.Number("0.0"), false},
		{"one", json.Number("1"), true},
		{"float zero", float64(0), false},
		{"NaN", math.NaN(), false},
		{"empty object", map[string]any{}, true},
		{"empty array", []any{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Truthy(tc.v))
		})
	}
}

func TestEntry_Publishable(t *testing.T) {
	assert.True(t, Entry{"id": "1"}.Publishable("published_at"))
	assert.True(t, Entry{"published_at": "2024-05-01"}.Publishable("published_at"))
	assert.False(t, Entry{"published_at": nil}.Publishable("published_at"))
	assert.False(t, Entry{"published_at": ""}.Publishable("published_at"))
	assert.False(t, Entry{"published": false}.Publishable("published"))
}

func TestEntry_ID(t *testing.T) {
	e, err := Decode([]byte(`{"id": 42, "title": "x"}`))
	require.NoError(t, err)

	id, ok := e.ID()
	require.True(t, ok)
	assert.Equal(t, "42", id)

	id, ok = Entry{"id": "abc"}.ID()
	require.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = Entry{"id": nil}.ID()
	assert.False(t, ok)

	_, ok = Entry{"title": "no id"}.ID()
	assert.False(t, ok)

	_, ok = Entry{"id": map[string]any{}}.ID()
	assert.False(t, ok)
}

func TestDecode_RejectsNonObject(t *testing.T) {
	_, err := Decode([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = Decode([]byte(`null`))
	assert.Error(t, err)
}

func TestDecodeRecords_Shapes(t *testing.T) {
	single, err := DecodeRecords([]byte(`{"id": 7}`))
	require.NoError(t, err)
	ids, dropped := single.IDs()
	assert.Equal(t, []string{"7"}, ids)
	assert.Zero(t, dropped)

	batch, err := DecodeRecords([]byte(` [{"id": 3}, {"id": "b"}, {"title": "x"}, {"id": 1}]`))
	require.NoError(t, err)
	ids, dropped = batch.IDs()
	assert.Equal(t, []string{"3", "b", "1"}, ids)
	assert.Equal(t, 1, dropped)

	_, err = DecodeRecords([]byte(`  `))
	assert.Error(t, err)
}

func TestRecords_UnmarshalJSON(t *testing.T) {
	var params struct {
		Entry Records `json:"entry"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"entry": {"id": 9}}`), &params))
	ids, _ := params.Entry.IDs()
	assert.Equal(t, []string{"9"}, ids)

	require.NoError(t, json.Unmarshal([]byte(`{"entry": [{"id": 1}, {"id": 2}]}`), &params))
	ids, _ = params.Entry.IDs()
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestEntry_Text(t *testing.T) {
	e, err := Decode([]byte(`{"title": "Hello", "body": "World", "views": 3, "tags": ["go", "search"], "meta": {"draft": false}}`))
	require.NoError(t, err)

	assert.Equal(t, "World\nfalse\ngo\nsearch\nHello\n3", e.Text())
}

func TestDecode_RejectsTrailingData(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"garbage after object", `{"id": 1} garbage`},
		{"second object", `{"id": 1} {"id": 2}`},
		{"array then object", `[{"id": 1}] {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecords([]byte(tt.input))
			assert.Error(t, err)
		})
	}

	_, err := Decode([]byte(`{"id": 1} garbage`))
	assert.Error(t, err)

	// Trailing whitespace is fine.
	e, err := Decode([]byte("{\"id\": 1}\n\t "))
	require.NoError(t, err)
	id, _ := e.ID()
	assert.Equal(t, "1", id)
}

func TestRecords_BatchDecodePaths(t *testing.T) {
	// Given a batch of records with numeric ids
	input := []byte(`[{"id": 3}, {"id": 1}, {"id": 12.50}]`)

	// When decoded directly
	direct, err := DecodeRecords(input)
	require.NoError(t, err)

	// And when decoded as a struct field through json.Unmarshal
	var params struct {
		Collection string  `json:"collection"`
		Entry      Records `json:"entry"`
	}
	wrapped := append(append([]byte(`{"collection": "article", "entry": `), input...), '}')
	require.NoError(t, json.Unmarshal(wrapped, &params))

	// Then both keep every id in input order, numbers verbatim
	want := []string{"3", "1", "12.50"}
	ids, dropped := direct.IDs()
	assert.Equal(t, want, ids)
	assert.Zero(t, dropped)

	ids, dropped = params.Entry.IDs()
	assert.Equal(t, want, ids)
	assert.Zero(t, dropped)
	assert.Equal(t, "article", params.Collection)
}
