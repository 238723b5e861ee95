package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// TagKey is the JSON member that carries the variant tag.
const TagKey = "type"

// Variant is implemented by every member of a closed sum type that crosses
// the boundary. VariantTag must be callable on the zero value.
type Variant interface {
	VariantTag() string
}

// Variant errors.
var (
	ErrUnknownVariant  = errors.New("unknown variant tag")
	ErrVariantMismatch = errors.New("variant does not match target type")
	ErrMissingTag      = errors.New("missing variant tag")
	ErrNotObject       = errors.New("variant did not encode to a JSON object")
)

var registry = struct {
	sync.RWMutex
	types map[string]reflect.Type
}{types: make(map[string]reflect.Type)}

// RegisterVariant makes V decodable by its tag. It panics on duplicate tags
// so conflicts surface at init time.
func RegisterVariant[V Variant]() {
	var zero V
	tag := zero.VariantTag()
	t := reflect.TypeFor[V]()

	registry.Lock()
	defer registry.Unlock()

	if prev, ok := registry.types[tag]; ok && prev != t {
		panic(fmt.Sprintf("wire: variant tag %q registered by %s and %s", tag, prev, t))
	}
	registry.types[tag] = t
}

// RegisteredTags returns all registered variant tags, sorted.
func RegisteredTags() []string {
	registry.RLock()
	defer registry.RUnlock()

	tags := make([]string, 0, len(registry.types))
	for tag := range registry.types {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func lookupVariant(tag string) (reflect.Type, bool) {
	registry.RLock()
	defer registry.RUnlock()
	t, ok := registry.types[tag]
	return t, ok
}

// MarshalVariant encodes v as a JSON object with the tag as its first member.
func MarshalVariant(v Variant) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(data) < 2 || data[0] != '{' {
		return nil, fmt.Errorf("%w: %s", ErrNotObject, v.VariantTag())
	}

	tag, err := json.Marshal(v.VariantTag())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + len(tag) + len(TagKey) + 4)
	buf.WriteString(`{"` + TagKey + `":`)
	buf.Write(tag)
	if !bytes.Equal(data, []byte("{}")) {
		buf.WriteByte(',')
		buf.Write(data[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// UnmarshalVariant decodes a tagged JSON object into the registered variant
// and asserts it to T, which is normally a sealed family interface.
func UnmarshalVariant[T any](data []byte) (T, error) {
	var zero T
	target := reflect.TypeFor[T]().String()

	tag, err := peekTag(data)
	if err != nil {
		return zero, &DecodeError{Target: target, Err: err}
	}
	if tag == "" {
		return zero, &DecodeError{Target: target, Err: ErrMissingTag}
	}

	typ, ok := lookupVariant(tag)
	if !ok {
		return zero, &DecodeError{Target: target, Tag: tag, Err: ErrUnknownVariant}
	}

	ptr := reflect.New(typ)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return zero, &DecodeError{Target: target, Tag: tag, Err: err}
	}

	v, ok := ptr.Elem().Interface().(T)
	if !ok {
		return zero, &DecodeError{Target: target, Tag: tag, Err: ErrVariantMismatch}
	}
	return v, nil
}

func peekTag(data []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", err
	}
	return head.Type, nil
}

// DecodeError reports a payload that could not be decoded at its target type.
type DecodeError struct {
	Target string
	Tag    string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("decode %s (tag %q): %v", e.Target, e.Tag, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Target, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
