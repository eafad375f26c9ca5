// Package codec provides deterministic encoding for index keys.
//
// An index key must compare equal for two documents that agree on the
// indexed fields regardless of the order those fields were set in the
// document literal. goccy/go-json sorts map[string]interface{} keys
// lexicographically when marshaling, the same guarantee the original
// implementation got from msgpack.dumps on a sorted dict.
package codec

import (
	"github.com/goccy/go-json"
)

// EncodeIndexKey produces a stable byte string for a set of field values.
// Two fieldset maps with identical key/value pairs always encode identically.
func EncodeIndexKey(fields map[string]interface{}) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeIndexKey reverses EncodeIndexKey, mainly for diagnostics and the
// index repair tooling.
func DecodeIndexKey(key string) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(key), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Marshal and Unmarshal wrap goccy/go-json for document (de)serialization
// used by the store backends and the export/import tooling.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
