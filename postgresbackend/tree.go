package postgresbackend

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// storedRow is one row of the values table. Only leaves are stored: primitives and arrays.
// Objects are spread over the paths of their leaves.
type storedRow struct {
	path  string
	value []byte
}

// leaf is a row to be written by Set.
type leaf struct {
	path string
	json string
}

// assemble builds the value at path from the rows stored at or beneath it.
func assemble(path string, rows []storedRow) (any, error) {
	var tree map[string]any

	for _, row := range rows {
		var decoded any
		if err := jsonAPI.Unmarshal(row.value, &decoded); err != nil {
			return nil, errors.Join(ErrDecodingValueFailed, fmt.Errorf("path %q: %w", row.path, err))
		}

		if row.path == path {
			return decoded, nil
		}

		if tree == nil {
			tree = make(map[string]any)
		}

		insertAt(tree, relativeSegments(path, row.path), decoded)
	}

	if tree == nil {
		return nil, nil
	}

	return tree, nil
}

func insertAt(tree map[string]any, segments []string, value any) {
	node := tree

	for _, segment := range segments[:len(segments)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[segment] = child
		}

		node = child
	}

	node[segments[len(segments)-1]] = value
}

// toJSONTree converts an arbitrary Go value into its generic JSON form,
// so that structs and typed maps can be flattened like decoded JSON.
func toJSONTree(value any) (any, error) {
	encoded, err := jsonAPI.Marshal(value)
	if err != nil {
		return nil, errors.Join(ErrEncodingValueFailed, err)
	}

	var tree any
	if err = jsonAPI.Unmarshal(encoded, &tree); err != nil {
		return nil, errors.Join(ErrEncodingValueFailed, err)
	}

	return tree, nil
}

// flatten spreads a generic JSON value over the leaf paths beneath path.
// nil and empty objects produce no leaves, so setting them removes the value.
func flatten(path string, value any) ([]leaf, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil

	case map[string]any:
		leaves := make([]leaf, 0, len(typed))

		for _, key := range slices.Sorted(maps.Keys(typed)) {
			if key == "" || strings.Contains(key, pathSeparator) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
			}

			childLeaves, err := flatten(joinPath(path, key), typed[key])
			if err != nil {
				return nil, err
			}

			leaves = append(leaves, childLeaves...)
		}

		return leaves, nil

	default:
		encoded, err := jsonAPI.Marshal(typed)
		if err != nil {
			return nil, errors.Join(ErrEncodingValueFailed, err)
		}

		return []leaf{{path: path, json: string(encoded)}}, nil
	}
}

// compareKeys orders keys the way ordered children are listed:
// keys that parse as 32-bit integers first, numerically, then all other keys lexicographically.
func compareKeys(a, b string) int {
	aInt, aErr := strconv.ParseInt(a, 10, 32)
	bInt, bErr := strconv.ParseInt(b, 10, 32)

	switch {
	case aErr == nil && bErr == nil:
		switch {
		case aInt < bInt:
			return -1
		case aInt > bInt:
			return 1
		default:
			return strings.Compare(a, b)
		}
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// orderedChildKeys returns the child keys of value in key order, or nil if value has no children.
func orderedChildKeys(value any) []string {
	children, ok := value.(map[string]any)
	if !ok {
		return nil
	}

	keys := slices.Collect(maps.Keys(children))
	slices.SortFunc(keys, compareKeys)

	return keys
}

// encodeChildren encodes every child of value, keyed by child key, for change detection.
func encodeChildren(value any) (map[string][]byte, error) {
	children, ok := value.(map[string]any)
	if !ok {
		return map[string][]byte{}, nil
	}

	encoded := make(map[string][]byte, len(children))
	for key, child := range children {
		childJSON, err := jsonAPI.Marshal(child)
		if err != nil {
			return nil, errors.Join(ErrEncodingValueFailed, err)
		}

		encoded[key] = childJSON
	}

	return encoded, nil
}
