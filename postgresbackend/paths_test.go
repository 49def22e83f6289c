package postgresbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_normalizePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "", expected: ""},
		{input: "/", expected: ""},
		{input: "books", expected: "books"},
		{input: "/books/", expected: "books"},
		{input: "//books///dune", expected: "books/dune"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, normalizePath(tc.input))
		})
	}
}

func Test_PathNavigation(t *testing.T) {
	assert.Equal(t, "books/dune", joinPath("books", "/dune/"))
	assert.Equal(t, "dune", joinPath("", "dune"))
	assert.Equal(t, "books", joinPath("books", "/"))

	assert.Equal(t, "books", parentPath("books/dune"))
	assert.Equal(t, "", parentPath("books"))
	assert.Equal(t, "", parentPath(""))

	assert.Equal(t, "dune", lastSegment("books/dune"))
	assert.Equal(t, "books", lastSegment("books"))
	assert.Equal(t, "", lastSegment(""))
}

func Test_ancestorPaths(t *testing.T) {
	assert.Nil(t, ancestorPaths(""))
	assert.Equal(t, []string{""}, ancestorPaths("books"))
	assert.Equal(t, []string{"", "books", "books/dune"}, ancestorPaths("books/dune/title"))
}

func Test_affects(t *testing.T) {
	testCases := []struct {
		name     string
		path     string
		changed  string
		expected bool
	}{
		{name: "same path", path: "books", changed: "books", expected: true},
		{name: "descendant changed", path: "books", changed: "books/dune/title", expected: true},
		{name: "ancestor changed", path: "books/dune", changed: "books", expected: true},
		{name: "root listener", path: "", changed: "books", expected: true},
		{name: "root changed", path: "books", changed: "", expected: true},
		{name: "sibling", path: "books/dune", changed: "books/emma", expected: false},
		{name: "shared prefix only", path: "books", changed: "bookshelf", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, affects(tc.path, tc.changed))
		})
	}
}

func Test_relativeSegments(t *testing.T) {
	assert.Equal(t, []string{"dune", "title"}, relativeSegments("books", "books/dune/title"))
	assert.Equal(t, []string{"books", "dune"}, relativeSegments("", "books/dune"))
}
