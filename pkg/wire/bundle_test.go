package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shape interface {
	Variant
	area() float64
}

type circle struct {
	R float64 `json:"r"`
}

func (circle) VariantTag() string { return "test.Circle" }
func (c circle) area() float64    { return 3 * c.R * c.R }

type dot struct{}

func (dot) VariantTag() string { return "test.Dot" }
func (dot) area() float64      { return 0 }

type label struct {
	Text string  `json:"text"`
	Note *string `json:"note,omitempty"`
}

func (label) VariantTag() string { return "test.Label" }

type plain struct {
	Name  string            `json:"name"`
	Count int               `json:"count"`
	Tags  map[string]string `json:"tags,omitempty"`
}

func init() {
	RegisterVariant[circle]()
	RegisterVariant[dot]()
	RegisterVariant[label]()
}

func TestEncodeVariantTagsObject(t *testing.T) {
	b, err := Encode(circle{R: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"test.Circle","r":2}`, b[KeyValue])

	b, err = Encode(dot{})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"test.Dot"}`, b[KeyValue])
}

func TestDecodeInterfaceTarget(t *testing.T) {
	for _, in := range []shape{circle{R: 1.5}, dot{}} {
		t.Run(in.VariantTag(), func(t *testing.T) {
			b, err := Encode(in)
			require.NoError(t, err)

			out, err := Decode[shape](b)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestDecodeConcreteTarget(t *testing.T) {
	b, err := Encode(circle{R: 4})
	require.NoError(t, err)

	c, err := Decode[circle](b)
	require.NoError(t, err)
	assert.Equal(t, circle{R: 4}, c)
}

func TestDecodeOptionalFields(t *testing.T) {
	note := "hi"
	for _, in := range []label{{Text: "a"}, {Text: "b", Note: &note}} {
		b, err := Encode(in)
		require.NoError(t, err)

		out, err := Decode[label](b)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}

	b, err := Encode(label{Text: "a"})
	require.NoError(t, err)
	assert.NotContains(t, b[KeyValue], "note")
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	b := Bundle{KeyValue: `{"type":"test.Circle","r":1,"colour":"red","nested":{"x":1}}`}

	s, err := Decode[shape](b)
	require.NoError(t, err)
	assert.Equal(t, circle{R: 1}, s)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		bundle Bundle
		decode func(Bundle) error
		want   error
	}{
		{
			name:   "missing value",
			bundle: Bundle{KeyPackage: "io.example"},
			decode: func(b Bundle) error { _, err := Decode[shape](b); return err },
			want:   ErrMissingValue,
		},
		{
			name:   "unknown tag",
			bundle: Bundle{KeyValue: `{"type":"test.Square","side":1}`},
			decode: func(b Bundle) error { _, err := Decode[shape](b); return err },
			want:   ErrUnknownVariant,
		},
		{
			name:   "missing tag",
			bundle: Bundle{KeyValue: `{"r":1}`},
			decode: func(b Bundle) error { _, err := Decode[shape](b); return err },
			want:   ErrMissingTag,
		},
		{
			name:   "tag outside family",
			bundle: Bundle{KeyValue: `{"type":"test.Label","text":"x"}`},
			decode: func(b Bundle) error { _, err := Decode[shape](b); return err },
			want:   ErrVariantMismatch,
		},
		{
			name:   "concrete target with other tag",
			bundle: Bundle{KeyValue: `{"type":"test.Dot"}`},
			decode: func(b Bundle) error { _, err := Decode[circle](b); return err },
			want:   ErrVariantMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode(tt.bundle)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var de *DecodeError
			assert.True(t, errors.As(err, &de))
		})
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode[plain](Bundle{KeyValue: `{"name":`})
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "wire.plain", de.Target)
}

func TestPlainRoundTrip(t *testing.T) {
	in := plain{Name: "x", Count: 3, Tags: map[string]string{"a": "b"}}
	b, err := Encode(in)
	require.NoError(t, err)
	assert.NotContains(t, b[KeyValue], TagKey)

	out, err := Decode[plain](b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

type impostor struct{}

func (impostor) VariantTag() string { return "test.Circle" }

func TestRegisterVariantDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { RegisterVariant[impostor]() })
	assert.NotPanics(t, func() { RegisterVariant[circle]() })
}

func TestRegisteredTags(t *testing.T) {
	tags := RegisteredTags()
	assert.Contains(t, tags, "test.Circle")
	assert.Contains(t, tags, "test.Dot")
	assert.IsIncreasing(t, tags)
}

func TestBundleClone(t *testing.T) {
	b := Bundle{KeyValue: "{}", KeyPackage: "p"}
	c := b.Clone()
	c[KeyPackage] = "q"
	assert.Equal(t, "p", b[KeyPackage])
	assert.Nil(t, Bundle(nil).Clone())
}

func TestBundleTag(t *testing.T) {
	b, err := Encode(circle{R: 1})
	require.NoError(t, err)
	assert.Equal(t, "test.Circle", b.Tag())

	assert.Equal(t, "", Bundle{}.Tag())
	assert.Equal(t, "", Bundle{KeyValue: "[1,2]"}.Tag())
	assert.Equal(t, "", Bundle{KeyValue: `{"name":"x"}`}.Tag())
}
