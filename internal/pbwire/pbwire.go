// Package pbwire walks and builds protobuf wire-format messages without
// generated code. Only the handful of fields the analyzer needs are ever
// interpreted; everything else is skipped the way a proto parser treats
// unknown fields.
package pbwire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field is one decoded top-level field. Only the value member matching Type
// is populated.
type Field struct {
	Num     protowire.Number
	Type    protowire.Type
	Varint  uint64
	Fixed64 uint64
	Fixed32 uint32
	Bytes   []byte
}

// Double interprets a fixed64 field as an IEEE-754 double.
func (f Field) Double() float64 {
	return math.Float64frombits(f.Fixed64)
}

// Walk calls fn for every top-level field of msg in wire order. Group fields
// are skipped. Returning an error from fn stops the walk and returns it.
func Walk(msg []byte, fn func(Field) error) error {
	b := msg
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("tag at offset %d: %w", len(msg)-len(b), protowire.ParseError(n))
		}
		b = b[n:]

		f := Field{Num: num, Type: typ}
		var m int
		switch typ {
		case protowire.VarintType:
			f.Varint, m = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.Fixed64, m = protowire.ConsumeFixed64(b)
		case protowire.Fixed32Type:
			f.Fixed32, m = protowire.ConsumeFixed32(b)
		case protowire.BytesType:
			f.Bytes, m = protowire.ConsumeBytes(b)
		default:
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			continue
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// AppendVarint appends a varint field.
func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBool appends a bool field.
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	return AppendVarint(b, num, protowire.EncodeBool(v))
}

// AppendDouble appends a double (fixed64) field.
func AppendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// AppendBytes appends a length-delimited field. Embedded messages are
// appended with this too.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendString appends a string field.
func AppendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
