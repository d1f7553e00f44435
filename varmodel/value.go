package varmodel

import (
	"fmt"
	"math"
)

// Kind identifies the representation of a Value, matching the wire
// protocol's single-byte value-kind codes exactly.
type Kind uint8

const (
	KindBool  Kind = 0
	KindByte  Kind = 1
	KindWord  Kind = 2
	KindDword Kind = 3
	KindFloat Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindByte:
		return "byte"
	case KindWord:
		return "word"
	case KindDword:
		return "dword"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Width returns the on-wire byte width of a value of this kind.
func (k Kind) Width() int {
	switch k {
	case KindBool, KindByte:
		return 1
	case KindWord:
		return 2
	case KindDword, KindFloat:
		return 4
	default:
		return 0
	}
}

// Valid reports whether k is one of the five defined kinds.
func (k Kind) Valid() bool {
	return k <= KindFloat
}

// Value is a variable's value: a kind tag plus its bits, stored uniformly
// as a uint32 so equality is a plain integer comparison regardless of
// kind. Values are immutable once constructed.
type Value struct {
	kind Kind
	bits uint32
}

// NewBool constructs a bool value.
func NewBool(v bool) Value {
	if v {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool, bits: 0}
}

// NewByte constructs a byte value.
func NewByte(v uint8) Value {
	return Value{kind: KindByte, bits: uint32(v)}
}

// NewWord constructs a word (uint16) value.
func NewWord(v uint16) Value {
	return Value{kind: KindWord, bits: uint32(v)}
}

// NewDword constructs a dword (uint32) value.
func NewDword(v uint32) Value {
	return Value{kind: KindDword, bits: v}
}

// NewFloat constructs an IEEE-754 single-precision float value.
func NewFloat(v float32) Value {
	return Value{kind: KindFloat, bits: math.Float32bits(v)}
}

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the value as a bool; ok is false if the kind is not KindBool.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.bits != 0, true
}

// Byte returns the value as a byte; ok is false if the kind is not KindByte.
func (v Value) Byte() (uint8, bool) {
	if v.kind != KindByte {
		return 0, false
	}
	return uint8(v.bits), true
}

// Word returns the value as a word; ok is false if the kind is not KindWord.
func (v Value) Word() (uint16, bool) {
	if v.kind != KindWord {
		return 0, false
	}
	return uint16(v.bits), true
}

// Dword returns the value as a dword; ok is false if the kind is not
// KindDword.
func (v Value) Dword() (uint32, bool) {
	if v.kind != KindDword {
		return 0, false
	}
	return v.bits, true
}

// Float32 returns the value as a float32; ok is false if the kind is not
// KindFloat.
func (v Value) Float32() (float32, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return math.Float32frombits(v.bits), true
}

// Bits returns the raw 32-bit representation of the value, whatever its
// kind; used by the wire codec and by FSUIPC offset sampling to compare
// values without type-switching.
func (v Value) Bits() uint32 { return v.bits }

// Equal reports whether two values have the same kind and bits.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && v.bits == other.bits
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t:bool", v.bits != 0)
	case KindByte:
		return fmt.Sprintf("%d:byte", uint8(v.bits))
	case KindWord:
		return fmt.Sprintf("%d:word", uint16(v.bits))
	case KindDword:
		return fmt.Sprintf("%d:dword", v.bits)
	case KindFloat:
		return fmt.Sprintf("%g:float", math.Float32frombits(v.bits))
	default:
		return fmt.Sprintf("<invalid:%s>", v.kind)
	}
}

// FromBits constructs a Value of the given kind directly from its raw bits,
// used when decoding off the wire. The kind must already be validated.
func FromBits(kind Kind, bits uint32) Value {
	return Value{kind: kind, bits: bits}
}
