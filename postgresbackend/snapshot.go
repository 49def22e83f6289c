package postgresbackend

import "errors"

// Snapshot is an immutable copy of the value at a path, as handed to listeners and returned by Client.Get.
// Objects are map[string]any, arrays []any, numbers float64.
type Snapshot struct {
	key   string
	value any
	raw   []byte
}

func newSnapshot(key string, value any) (*Snapshot, error) {
	raw, err := jsonAPI.Marshal(value)
	if err != nil {
		return nil, errors.Join(ErrEncodingValueFailed, err)
	}

	return &Snapshot{key: key, value: value, raw: raw}, nil
}

// Value returns the decoded value, nil if nothing is stored at the path.
func (s *Snapshot) Value() any {
	return s.value
}

// Key returns the last segment of the path, "" for the root.
func (s *Snapshot) Key() string {
	return s.key
}

// Exists reports whether a value is stored at the path.
func (s *Snapshot) Exists() bool {
	return s.value != nil
}

// Raw returns the value encoded as JSON with sorted object keys. It is "null" for missing values.
func (s *Snapshot) Raw() []byte {
	return s.raw
}

// Decode unmarshals the value into target.
func (s *Snapshot) Decode(target any) error {
	if err := jsonAPI.Unmarshal(s.raw, target); err != nil {
		return errors.Join(ErrDecodingValueFailed, err)
	}

	return nil
}
