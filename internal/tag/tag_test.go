package tag

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profileScreen struct{ ID int }

type namedScreen struct{ name string }

func (s namedScreen) Tag() string { return s.name }

type detailScreen struct {
	args map[string]any
}

func (s *detailScreen) Arguments() map[string]any { return s.args }

const pkg = "github.com/roach88/navqueue/internal/tag"

func TestStringExtractor(t *testing.T) {
	tag, err := StringExtractor{}.Extract("home")
	require.NoError(t, err)
	assert.Equal(t, "home", tag)

	_, err = StringExtractor{}.Extract(42)
	require.Error(t, err)
	var unsupported *UnsupportedSourceError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "tag.StringExtractor doesn't support int", err.Error())
}

func TestTypeExtractor(t *testing.T) {
	tests := []struct {
		name     string
		source   any
		expected string
	}{
		{"string passthrough", "settings", "settings"},
		{"struct value", profileScreen{}, pkg + ".profileScreen"},
		{"struct pointer", &profileScreen{ID: 1}, pkg + ".profileScreen"},
		{"reflect type", reflect.TypeOf(profileScreen{}), pkg + ".profileScreen"},
		{"reflect pointer type", reflect.TypeOf(&profileScreen{}), pkg + ".profileScreen"},
		{"tagger", namedScreen{name: "inbox"}, "inbox"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := TypeExtractor{}.Extract(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tag)
		})
	}
}

func TestTypeExtractor_Unsupported(t *testing.T) {
	tests := []struct {
		name   string
		source any
		msg    string
	}{
		{"nil", nil, "tag.TypeExtractor doesn't support <nil>"},
		{"int", 7, "tag.TypeExtractor doesn't support int"},
		{"func", func() {}, "tag.TypeExtractor doesn't support func()"},
		{"anonymous struct", struct{ A int }{}, "tag.TypeExtractor doesn't support struct { A int }"},
		{"unnamed type", reflect.TypeOf([]int{}), "tag.TypeExtractor doesn't support []int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TypeExtractor{}.Extract(tt.source)
			require.Error(t, err)
			var unsupported *UnsupportedSourceError
			assert.ErrorAs(t, err, &unsupported)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestJSONExtractor(t *testing.T) {
	x := JSONExtractor{}

	tag, err := x.Extract(&detailScreen{args: map[string]any{"id": 7, "mode": "edit"}})
	require.NoError(t, err)
	assert.Equal(t, pkg+`.detailScreen_{"id":7,"mode":"edit"}`, tag)

	tag, err = x.Extract(&detailScreen{})
	require.NoError(t, err)
	assert.Equal(t, pkg+".detailScreen", tag, "no arguments, no suffix")

	tag, err = x.Extract(profileScreen{})
	require.NoError(t, err)
	assert.Equal(t, pkg+".profileScreen", tag)
}

func TestJSONExtractor_CustomBase(t *testing.T) {
	x := JSONExtractor{Base: StringExtractor{}}

	_, err := x.Extract(&detailScreen{})
	var unsupported *UnsupportedSourceError
	assert.ErrorAs(t, err, &unsupported)
}

func TestJSONExtractor_BadArguments(t *testing.T) {
	_, err := JSONExtractor{}.Extract(&detailScreen{args: map[string]any{"ratio": 0.5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestDefault(t *testing.T) {
	assert.IsType(t, TypeExtractor{}, Default())
}
