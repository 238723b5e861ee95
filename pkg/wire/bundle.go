package wire

import (
	"encoding/json"
	"errors"
	"reflect"
)

// Bundle keys.
const (
	// KeyValue holds the JSON document of an event, param set or effect.
	KeyValue = "value"

	// KeyPackage holds the caller's package name on bind.
	KeyPackage = "package"

	// KeyView holds a rendered view on view updates.
	KeyView = "view"
)

// ErrMissingValue is returned when a bundle has no KeyValue entry.
var ErrMissingValue = errors.New("bundle has no value")

// Bundle is the string-keyed envelope carried across the boundary.
type Bundle map[string]string

// Value returns the JSON document under KeyValue.
func (b Bundle) Value() (string, bool) {
	v, ok := b[KeyValue]
	return v, ok
}

// Clone returns a shallow copy of the bundle.
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Encode JSON-encodes v into a new bundle under KeyValue. Variants are
// tagged.
func Encode(v any) (Bundle, error) {
	data, err := EncodeJSON(v)
	if err != nil {
		return nil, err
	}
	return Bundle{KeyValue: string(data)}, nil
}

// EncodeJSON returns the JSON document Encode would store.
func EncodeJSON(v any) ([]byte, error) {
	if variant, ok := v.(Variant); ok {
		return MarshalVariant(variant)
	}
	return json.Marshal(v)
}

// Decode reads the KeyValue document from b as a T.
//
// When T is an interface the document's tag selects the concrete variant.
// When T is itself a variant and the document carries a different tag the
// call fails rather than silently producing a zero value.
func Decode[T any](b Bundle) (T, error) {
	var zero T
	raw, ok := b.Value()
	if !ok {
		return zero, &DecodeError{Target: reflect.TypeFor[T]().String(), Err: ErrMissingValue}
	}
	return DecodeJSON[T]([]byte(raw))
}

// DecodeJSON decodes a JSON document as a T. See Decode.
func DecodeJSON[T any](data []byte) (T, error) {
	var zero T
	rt := reflect.TypeFor[T]()

	if rt.Kind() == reflect.Interface {
		return UnmarshalVariant[T](data)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, &DecodeError{Target: rt.String(), Err: err}
	}

	if variant, ok := any(v).(Variant); ok {
		tag, err := peekTag(data)
		if err != nil {
			return zero, &DecodeError{Target: rt.String(), Err: err}
		}
		if tag != "" && tag != variant.VariantTag() {
			return zero, &DecodeError{Target: rt.String(), Tag: tag, Err: ErrVariantMismatch}
		}
	}
	return v, nil
}

// Tag returns the variant tag of the KeyValue document, or "" when the
// bundle holds no tagged value.
func (b Bundle) Tag() string {
	raw, ok := b.Value()
	if !ok {
		return ""
	}
	tag, err := peekTag([]byte(raw))
	if err != nil {
		return ""
	}
	return tag
}
