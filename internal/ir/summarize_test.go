package ir

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Snapshot
	}{
		{"nil", nil, "null"},
		{"string", "hi", `"hi"`},
		{"int", 7, "7"},
		{"uint8", uint8(3), "3"},
		{"float", 2.5, "2.5"},
		{"bool", true, "true"},
		{"nan", math.NaN(), `"NaN"`},
		{"inf", math.Inf(-1), `"-Infinity"`},
		{"nil pointer", (*int)(nil), "null"},
		{"nil map", map[string]any(nil), "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Summarize(tt.input))
		})
	}
}

func TestSummarizeMapIsOneLevel(t *testing.T) {
	model := map[string]any{
		"name":    "cart",
		"count":   2,
		"items":   []any{"a", "b", "c"},
		"owner":   map[string]any{"id": 1},
		"$parent": map[string]any{},
		"_cache":  1,
		"onClick": func() {},
	}

	snap := Summarize(model)
	assert.Equal(t, Snapshot(`{"count":2,"items":{"~array-length":3},"name":"cart","owner":{"~object":true}}`), snap)
}

func TestSummarizeDeepMutationIsInvisible(t *testing.T) {
	owner := map[string]any{"id": 1}
	model := map[string]any{"owner": owner}

	before := Summarize(model)
	owner["id"] = 2
	after := Summarize(model)

	assert.Equal(t, before, after, "nested field changes are not part of the summary")
}

func TestSummarizeTopLevelSlice(t *testing.T) {
	snap := Summarize([]any{1, "x", []int{1, 2}, map[string]int{"a": 1}, nil})
	assert.Equal(t, Snapshot(`[1,"x",{"~array-length":2},{"~object":true},null]`), snap)
}

type account struct {
	ID      int    `json:"id"`
	Name    string `json:"name,omitempty"`
	Secret  string `json:"-"`
	Tags    []string
	private int
}

func TestSummarizeStructUsesJSONNames(t *testing.T) {
	snap := Summarize(&account{ID: 4, Name: "ada", Secret: "x", Tags: []string{"a"}, private: 1})
	assert.Equal(t, Snapshot(`{"Tags":{"~array-length":1},"id":4,"name":"ada"}`), snap)
}

func TestSummarizeTextMarshaler(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, Snapshot(`"2024-01-02T03:04:05Z"`), Summarize(at))
	assert.Equal(t, Snapshot(`{"at":"2024-01-02T03:04:05Z"}`), Summarize(map[string]any{"at": at}))
}

func TestSummarizeCyclicInputTerminates(t *testing.T) {
	node := map[string]any{}
	node["self"] = node

	assert.Equal(t, Snapshot(`{"self":{"~object":true}}`), Summarize(node))
}

func TestSummarizeFunction(t *testing.T) {
	assert.Equal(t, Snapshot(`"~function"`), Summarize(func() {}))
}

func TestSnapshotMarshalJSONIsRaw(t *testing.T) {
	payload := struct {
		Value    Snapshot  `json:"value"`
		OldValue *Snapshot `json:"oldValue,omitempty"`
	}{Value: Summarize(map[string]any{"a": 1})}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Equal(t, `{"value":{"a":1}}`, string(data))

	var decoded struct {
		Value Snapshot `json:"value"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Snapshot(`{"a":1}`), decoded.Value)
}
