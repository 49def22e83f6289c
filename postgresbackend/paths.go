package postgresbackend

import "strings"

const pathSeparator = "/"

// normalizePath drops empty segments, so "/books//dune/" becomes "books/dune". The root is "".
func normalizePath(path string) string {
	return strings.Join(splitPath(path), pathSeparator)
}

func splitPath(path string) []string {
	raw := strings.Split(path, pathSeparator)
	segments := make([]string, 0, len(raw))

	for _, segment := range raw {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	return segments
}

func joinPath(parent, child string) string {
	if parent == "" {
		return normalizePath(child)
	}

	if normalized := normalizePath(child); normalized != "" {
		return parent + pathSeparator + normalized
	}

	return parent
}

// parentPath returns the parent of a normalized path. The parent of the root is the root.
func parentPath(path string) string {
	idx := strings.LastIndex(path, pathSeparator)
	if idx < 0 {
		return ""
	}

	return path[:idx]
}

// lastSegment returns the key of a normalized path, "" for the root.
func lastSegment(path string) string {
	return path[strings.LastIndex(path, pathSeparator)+1:]
}

// ancestorPaths returns all proper ancestors of a normalized path, the root first.
func ancestorPaths(path string) []string {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil
	}

	ancestors := make([]string, 0, len(segments))
	for i := 0; i < len(segments); i++ {
		ancestors = append(ancestors, strings.Join(segments[:i], pathSeparator))
	}

	return ancestors
}

// isDescendant reports whether candidate lies strictly beneath path.
func isDescendant(path, candidate string) bool {
	if path == "" {
		return candidate != ""
	}

	return strings.HasPrefix(candidate, path+pathSeparator)
}

// affects reports whether a change stored at changed can alter the value at path.
func affects(path, changed string) bool {
	return path == changed || isDescendant(path, changed) || isDescendant(changed, path)
}

// relativeSegments returns the segments of descendant below path.
func relativeSegments(path, descendant string) []string {
	if path == "" {
		return splitPath(descendant)
	}

	return splitPath(strings.TrimPrefix(descendant, path+pathSeparator))
}
