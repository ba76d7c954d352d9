package codec

import (
	"reflect"

	"ctpbridge/internal/schema"
)

// Codec converts one native fixed-layout record type to and from its Go
// value. Records are packed little-endian with char[N] text fields.
type Codec[T any] struct {
	Type  schema.RecordType
	Size  int
	visit func(fieldVisitor, *T)
}

// Decode parses src into a new value. It never fails: fields that cannot be
// represented are set to their zero value and counted in faults.
func (c Codec[T]) Decode(src []byte) (v T, faults int) {
	r := reader{src: src}
	c.visit(&r, &v)
	return v, r.faults
}

// Encode serializes v into dst, growing it if needed.
func (c Codec[T]) Encode(dst []byte, v T) ([]byte, error) {
	if cap(dst) < c.Size {
		dst = make([]byte, c.Size)
	} else {
		dst = dst[:c.Size]
		clear(dst)
	}
	w := writer{dst: dst}
	c.visit(&w, &v)
	if w.err != nil {
		return nil, w.err
	}
	return dst, nil
}

type entry struct {
	goType reflect.Type
	size   int
	decode func([]byte) (any, int)
}

var registry [schema.NumRecordTypes]entry

func newCodec[T any](rt schema.RecordType, visit func(fieldVisitor, *T)) Codec[T] {
	var s sizer
	var zero T
	visit(&s, &zero)

	c := Codec[T]{Type: rt, Size: s.n, visit: visit}
	registry[rt] = entry{
		goType: reflect.TypeFor[*T](),
		size:   c.Size,
		decode: func(src []byte) (any, int) {
			v, faults := c.Decode(src)
			return &v, faults
		},
	}
	return c
}

// PointerType returns the *T handlers receive for records of type rt, or
// nil for RecordNone.
func PointerType(rt schema.RecordType) reflect.Type {
	if int(rt) >= len(registry) {
		return nil
	}
	return registry[rt].goType
}

// Size returns the native layout size of rt.
func Size(rt schema.RecordType) int {
	if int(rt) >= len(registry) {
		return 0
	}
	return registry[rt].size
}

// DecodeAny decodes src as rt and returns a pointer to a freshly allocated
// value. ok is false when rt has no codec.
func DecodeAny(rt schema.RecordType, src []byte) (v any, faults int, ok bool) {
	if int(rt) >= len(registry) || registry[rt].decode == nil {
		return nil, 0, false
	}
	v, faults = registry[rt].decode(src)
	return v, faults, true
}
