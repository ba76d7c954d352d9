package relay

import (
	"reflect"

	"ctpbridge/internal/codec"
	"ctpbridge/internal/native"
	"ctpbridge/internal/schema"
)

// event is one native callback before marshalling.
type event struct {
	kind      schema.EventKind
	payload   native.Record
	info      native.Record
	requestID int
	isLast    bool
	reason    int
}

// marshalRecord copies rec into a new Go value of the record's type. An
// absent record becomes a typed nil pointer so handlers can tell it apart
// from a record whose fields are all zero.
func marshalRecord(rt schema.RecordType, rec native.Record) (reflect.Value, int) {
	if rec.Absent() {
		return reflect.Zero(codec.PointerType(rt)), 0
	}
	v, faults, ok := codec.DecodeAny(rt, rec)
	if !ok {
		return reflect.Zero(codec.PointerType(rt)), 1
	}
	return reflect.ValueOf(v), faults
}

// arguments builds the handler arguments for ev in the order Signature
// declares them.
func (b *Binding) arguments(ev event) ([]reflect.Value, int) {
	spec := ev.kind.Spec()
	switch spec.Shape {
	case schema.ShapeNotify:
		return nil, 0
	case schema.ShapeReason:
		return []reflect.Value{reflect.ValueOf(ev.reason)}, 0
	case schema.ShapeRsp:
		payload, pf := marshalRecord(spec.Record, ev.payload)
		info, inf := marshalRecord(schema.RecordRspInfo, ev.info)
		return []reflect.Value{payload, info, reflect.ValueOf(ev.requestID), reflect.ValueOf(ev.isLast)}, pf + inf
	case schema.ShapeInfo:
		info, inf := marshalRecord(schema.RecordRspInfo, ev.info)
		return []reflect.Value{info, reflect.ValueOf(ev.requestID), reflect.ValueOf(ev.isLast)}, inf
	case schema.ShapeRtn:
		payload, pf := marshalRecord(spec.Record, ev.payload)
		return []reflect.Value{payload}, pf
	case schema.ShapeErrRtn:
		payload, pf := marshalRecord(spec.Record, ev.payload)
		info, inf := marshalRecord(schema.RecordRspInfo, ev.info)
		return []reflect.Value{payload, info}, pf + inf
	default:
		return nil, 0
	}
}
