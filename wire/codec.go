package wire

import (
	"encoding/binary"

	"github.com/flightvars/flightvars/varmodel"
)

// terminator is the two-byte marker every message ends with. It is not a
// big-endian uint16 value being compared numerically; it is the literal
// byte pair 0x0D, 0x0A.
var terminator = [2]byte{0x0D, 0x0A}

// Serialize encodes msg into a freshly allocated byte slice, including the
// leading type code and trailing terminator. It is infallible except when
// a string field exceeds the 65535-byte length a u16-prefixed string can
// carry.
func Serialize(msg Message) ([]byte, error) {
	w := newEncoder()
	w.writeU16(uint16(msg.Type()))

	switch m := msg.(type) {
	case BeginSession:
		if err := w.writeString(m.PeerName); err != nil {
			return nil, err
		}
		w.writeU16(m.ProtocolVersion)

	case EndSession:
		if err := w.writeString(m.Cause); err != nil {
			return nil, err
		}

	case SubscriptionRequest:
		if err := w.writeString(m.Group); err != nil {
			return nil, err
		}
		if err := w.writeString(m.Name); err != nil {
			return nil, err
		}

	case SubscriptionReply:
		w.writeU8(uint8(m.Status))
		if err := w.writeString(m.Group); err != nil {
			return nil, err
		}
		if err := w.writeString(m.Name); err != nil {
			return nil, err
		}
		w.writeU32(m.SubsID)
		if err := w.writeString(m.Cause); err != nil {
			return nil, err
		}

	case UnsubscriptionRequest:
		w.writeU32(m.SubsID)

	case UnsubscriptionReply:
		w.writeU8(uint8(m.Status))
		w.writeU32(m.SubsID)
		if err := w.writeString(m.Cause); err != nil {
			return nil, err
		}

	case VarUpdate:
		w.writeU32(m.SubsID)
		writeValue(w, m.Value)

	default:
		return nil, newProtocolError("known message type", "unrecognized Go type")
	}

	w.write(terminator[:])
	return w.bytes(), nil
}

// Deserialize parses exactly one message from the front of data. On
// success it returns the message and the number of bytes consumed
// (including the terminator). On ErrEOF, data held fewer bytes than the
// message requires; the caller should retry with more bytes appended to
// the same buffer starting at the same offset — Deserialize never
// consumes a partial message. Any other error is a ProtocolError and the
// connection should be treated as desynchronized.
func Deserialize(data []byte) (Message, int, error) {
	r := newDecoder(data)

	rawType, err := r.readU16()
	if err != nil {
		return nil, 0, err
	}
	msgType := Type(rawType)

	var msg Message

	switch msgType {
	case TypeBeginSession:
		peer, err := r.readString()
		if err != nil {
			return nil, 0, err
		}
		ver, err := r.readU16()
		if err != nil {
			return nil, 0, err
		}
		msg = BeginSession{PeerName: peer, ProtocolVersion: ver}

	case TypeEndSession:
		cause, err := r.readString()
		if err != nil {
			return nil, 0, err
		}
		msg = EndSession{Cause: cause}

	case TypeSubscriptionRequest:
		group, err := r.readString()
		if err != nil {
			return nil, 0, err
		}
		name, err := r.readString()
		if err != nil {
			return nil, 0, err
		}
		msg = SubscriptionRequest{Group: group, Name: name}

	case TypeSubscriptionReply:
		status, err := r.readU8()
		if err != nil {
			return nil, 0, err
		}
		group, err := r.readString()
		if err != nil {
			return nil, 0, err
		}
		name, err := r.readString()
		if err != nil {
			return nil, 0, err
		}
		subsID, err := r.readU32()
		if err != nil {
			return nil, 0, err
		}
		cause, err := r.readString()
		if err != nil {
			return nil, 0, err
		}
		st := SubscriptionStatus(status)
		if !st.valid() {
			return nil, 0, newProtocolError("subscription status 0-4", st.String())
		}
		msg = SubscriptionReply{Status: st, Group: group, Name: name, SubsID: subsID, Cause: cause}

	case TypeUnsubscriptionRequest:
		subsID, err := r.readU32()
		if err != nil {
			return nil, 0, err
		}
		msg = UnsubscriptionRequest{SubsID: subsID}

	case TypeUnsubscriptionReply:
		status, err := r.readU8()
		if err != nil {
			return nil, 0, err
		}
		subsID, err := r.readU32()
		if err != nil {
			return nil, 0, err
		}
		cause, err := r.readString()
		if err != nil {
			return nil, 0, err
		}
		st := SubscriptionStatus(status)
		if !st.valid() {
			return nil, 0, newProtocolError("subscription status 0-4", st.String())
		}
		msg = UnsubscriptionReply{Status: st, SubsID: subsID, Cause: cause}

	case TypeVarUpdate:
		subsID, err := r.readU32()
		if err != nil {
			return nil, 0, err
		}
		value, err := readValue(r)
		if err != nil {
			return nil, 0, err
		}
		msg = VarUpdate{SubsID: subsID, Value: value}

	default:
		return nil, 0, newProtocolError("known message type code", "0x"+itoaHex(rawType))
	}

	if err := r.expectTerminator(); err != nil {
		return nil, 0, err
	}

	return msg, r.pos, nil
}

func writeValue(w *encoder, v varmodel.Value) {
	w.writeU8(uint8(v.Kind()))
	switch v.Kind() {
	case varmodel.KindBool, varmodel.KindByte:
		w.writeU8(uint8(v.Bits()))
	case varmodel.KindWord:
		w.writeU16(uint16(v.Bits()))
	case varmodel.KindDword, varmodel.KindFloat:
		w.writeU32(v.Bits())
	}
}

func readValue(r *decoder) (varmodel.Value, error) {
	rawKind, err := r.readU8()
	if err != nil {
		return varmodel.Value{}, err
	}

	kind := varmodel.Kind(rawKind)
	if !kind.Valid() {
		return varmodel.Value{}, newProtocolError("value kind 0-4", kind.String())
	}

	var bits uint32
	switch kind {
	case varmodel.KindBool, varmodel.KindByte:
		b, err := r.readU8()
		if err != nil {
			return varmodel.Value{}, err
		}
		bits = uint32(b)
	case varmodel.KindWord:
		w, err := r.readU16()
		if err != nil {
			return varmodel.Value{}, err
		}
		bits = uint32(w)
	case varmodel.KindDword, varmodel.KindFloat:
		d, err := r.readU32()
		if err != nil {
			return varmodel.Value{}, err
		}
		bits = d
	}

	return varmodel.FromBits(kind, bits), nil
}

func itoaHex(v uint16) string {
	const hexDigits = "0123456789abcdef"
	buf := [4]byte{}
	for i := 3; i >= 0; i-- {
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf[:])
}

// encoder accumulates the wire bytes of a single message.
type encoder struct {
	buf []byte
}

func newEncoder() *encoder {
	return &encoder{buf: make([]byte, 0, 32)}
}

func (e *encoder) write(b []byte)    { e.buf = append(e.buf, b...) }
func (e *encoder) writeU8(b uint8)   { e.buf = append(e.buf, b) }
func (e *encoder) writeU16(v uint16) { e.buf = binary.BigEndian.AppendUint16(e.buf, v) }
func (e *encoder) writeU32(v uint32) { e.buf = binary.BigEndian.AppendUint32(e.buf, v) }

func (e *encoder) writeString(s string) error {
	if len(s) > 0xFFFF {
		return newProtocolError("string length <= 65535", "longer string")
	}
	e.writeU16(uint16(len(s)))
	e.buf = append(e.buf, s...)
	return nil
}

func (e *encoder) bytes() []byte { return e.buf }

// decoder walks a byte slice without copying, reporting ErrEOF when the
// slice is exhausted mid-field so the caller can rewind and retry with
// more buffered input.
type decoder struct {
	data []byte
	pos  int
}

func newDecoder(data []byte) *decoder {
	return &decoder{data: data}
}

func (d *decoder) readU8() (uint8, error) {
	if d.pos+1 > len(d.data) {
		return 0, ErrEOF
	}
	v := d.data[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) readU16() (uint16, error) {
	if d.pos+2 > len(d.data) {
		return 0, ErrEOF
	}
	v := binary.BigEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *decoder) readU32() (uint32, error) {
	if d.pos+4 > len(d.data) {
		return 0, ErrEOF
	}
	v := binary.BigEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) readString() (string, error) {
	length, err := d.readU16()
	if err != nil {
		return "", err
	}
	if d.pos+int(length) > len(d.data) {
		return "", ErrEOF
	}
	raw := d.data[d.pos : d.pos+int(length)]
	d.pos += int(length)

	if err := validateUTF8String(raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *decoder) expectTerminator() error {
	if d.pos+2 > len(d.data) {
		return ErrEOF
	}
	if d.data[d.pos] != terminator[0] || d.data[d.pos+1] != terminator[1] {
		return newProtocolError("0x0D0A terminator", "missing or corrupt terminator")
	}
	d.pos += 2
	return nil
}
