package fsuipc

import (
	"encoding/binary"

	"github.com/flightvars/flightvars/varmodel"
)

func kindForLength(length uint8) (varmodel.Kind, error) {
	switch length {
	case 1:
		return varmodel.KindByte, nil
	case 2:
		return varmodel.KindWord, nil
	case 4:
		return varmodel.KindDword, nil
	default:
		return 0, ErrInvalidOffsetLength
	}
}

// valueToBytes encodes v in host-native byte order at the width implied by
// its kind, matching the FSUIPC domain's compatibility commitment.
func valueToBytes(v varmodel.Value) []byte {
	switch v.Kind() {
	case varmodel.KindByte, varmodel.KindBool:
		b, _ := v.Byte()
		if v.Kind() == varmodel.KindBool {
			bo, _ := v.Bool()
			if bo {
				b = 1
			} else {
				b = 0
			}
		}
		return []byte{b}
	case varmodel.KindWord:
		w, _ := v.Word()
		buf := make([]byte, 2)
		binary.NativeEndian.PutUint16(buf, w)
		return buf
	case varmodel.KindDword:
		d, _ := v.Dword()
		buf := make([]byte, 4)
		binary.NativeEndian.PutUint32(buf, d)
		return buf
	default:
		return nil
	}
}

// bytesToValue decodes raw host-native-order bytes into a Value of the
// given kind.
func bytesToValue(kind varmodel.Kind, raw []byte) varmodel.Value {
	switch kind {
	case varmodel.KindByte:
		return varmodel.NewByte(raw[0])
	case varmodel.KindWord:
		return varmodel.NewWord(binary.NativeEndian.Uint16(raw))
	case varmodel.KindDword:
		return varmodel.NewDword(binary.NativeEndian.Uint32(raw))
	default:
		return varmodel.Value{}
	}
}
