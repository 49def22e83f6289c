package realtime

import (
	"encoding/json"
	"errors"

	jsoniter "github.com/json-iterator/go"
)

// DecodeJSON returns a ValueMapper that decodes raw values into a T.
//
// Raw values that already are a T are passed through unchanged.
// Raw values of type []byte, json.RawMessage, or string are treated as JSON documents.
// Any other raw value, e.g. the maps and slices a backend has already decoded, is re-encoded
// and decoded into a T. A nil raw value maps to nil, which is delivered as the zero T.
func DecodeJSON[T any]() ValueMapper {
	return func(raw any) (any, error) {
		if raw == nil {
			return nil, nil
		}

		var document []byte

		switch typed := raw.(type) {
		case T:
			return typed, nil
		case json.RawMessage:
			document = typed
		case []byte:
			document = typed
		case string:
			document = []byte(typed)
		default:
			encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(typed)
			if err != nil {
				return nil, errors.Join(ErrDecodingJSONFailed, err)
			}

			document = encoded
		}

		var value T
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(document, &value); err != nil {
			return nil, errors.Join(ErrDecodingJSONFailed, err)
		}

		return value, nil
	}
}
