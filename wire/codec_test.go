package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/flightvars/flightvars/varmodel"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	encoded, err := Serialize(msg)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	decoded, consumed, err := Deserialize(encoded)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("expected to consume %d bytes, consumed %d", len(encoded), consumed)
	}
	return decoded
}

func TestRoundTripAllMessageVariants(t *testing.T) {
	cases := []Message{
		BeginSession{PeerName: "Client A", ProtocolVersion: 0x0100},
		EndSession{Cause: "Client disconnected"},
		SubscriptionRequest{Group: "fsuipc/offset", Name: "0x1000:1"},
		SubscriptionReply{Status: StatusSubscribed, Group: "fsuipc/offset", Name: "0x1000:1", SubsID: 1, Cause: ""},
		SubscriptionReply{Status: StatusNoSuchVar, Group: "unknown", Name: "foo", SubsID: 0, Cause: "no master for group"},
		UnsubscriptionRequest{SubsID: 1},
		UnsubscriptionReply{Status: StatusUnsubscribed, SubsID: 1, Cause: ""},
		VarUpdate{SubsID: 1, Value: varmodel.NewByte(0x42)},
	}

	for _, msg := range cases {
		got := roundTrip(t, msg)
		if got != msg {
			t.Fatalf("round trip mismatch: got %#v, want %#v", got, msg)
		}
	}
}

func TestRoundTripEachValueKind(t *testing.T) {
	values := []varmodel.Value{
		varmodel.NewBool(true),
		varmodel.NewBool(false),
		varmodel.NewByte(0xFF),
		varmodel.NewWord(0xCAFE),
		varmodel.NewDword(0xDEADBEEF),
		varmodel.NewFloat(3.25),
	}

	for _, v := range values {
		msg := VarUpdate{SubsID: 7, Value: v}
		got := roundTrip(t, msg).(VarUpdate)
		if !got.Value.Equal(v) {
			t.Fatalf("value mismatch for kind %s: got %v, want %v", v.Kind(), got.Value, v)
		}
	}
}

func TestZeroLengthStringPayload(t *testing.T) {
	msg := EndSession{Cause: ""}
	got := roundTrip(t, msg).(EndSession)
	if got.Cause != "" {
		t.Fatalf("expected empty cause, got %q", got.Cause)
	}
}

func TestMaxLengthStringPayload(t *testing.T) {
	cause := strings.Repeat("a", 65535)
	msg := EndSession{Cause: cause}
	got := roundTrip(t, msg).(EndSession)
	if got.Cause != cause {
		t.Fatal("max-length string did not round trip")
	}
}

func TestSerializeRejectsOverlongString(t *testing.T) {
	_, err := Serialize(EndSession{Cause: strings.Repeat("a", 65536)})
	if err == nil {
		t.Fatal("expected error for string exceeding 65535 bytes")
	}
}

func TestDeserializeMissingTerminatorIsProtocolError(t *testing.T) {
	encoded, _ := Serialize(EndSession{Cause: "bye"})
	corrupted := append([]byte{}, encoded[:len(encoded)-2]...)
	corrupted = append(corrupted, 0x00, 0x00)

	_, _, err := Deserialize(corrupted)
	var perr *ProtocolError
	if err == nil {
		t.Fatal("expected protocol error for missing terminator")
	}
	if !isProtocolError(err, &perr) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
}

func TestDeserializeUnknownTypeCodeIsProtocolError(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0x0D, 0x0A}
	_, _, err := Deserialize(data)
	var perr *ProtocolError
	if !isProtocolError(err, &perr) {
		t.Fatalf("expected *ProtocolError for unknown type code, got %T: %v", err, err)
	}
}

func TestDeserializePartialBufferIsEOFAndRecoverable(t *testing.T) {
	encoded, _ := Serialize(BeginSession{PeerName: "Client A", ProtocolVersion: 0x0100})

	for cut := 1; cut < len(encoded); cut++ {
		_, _, err := Deserialize(encoded[:cut])
		if err != ErrEOF {
			t.Fatalf("cut=%d: expected ErrEOF, got %v", cut, err)
		}
	}

	msg, consumed, err := Deserialize(encoded)
	if err != nil {
		t.Fatalf("expected full buffer to deserialize cleanly, got %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("expected to consume entire buffer, got %d of %d", consumed, len(encoded))
	}
	if _, ok := msg.(BeginSession); !ok {
		t.Fatalf("expected BeginSession, got %T", msg)
	}
}

func TestMessageReaderAccumulatesAcrossShortReads(t *testing.T) {
	encoded, _ := Serialize(SubscriptionRequest{Group: "fsuipc/offset", Name: "0x1000:1"})

	// a reader that trickles one byte at a time exercises the
	// accumulate-and-retry loop in MessageReader.
	r := &byteAtATimeReader{data: encoded}
	mr := NewMessageReader(r)

	msg, err := mr.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	req, ok := msg.(SubscriptionRequest)
	if !ok {
		t.Fatalf("expected SubscriptionRequest, got %T", msg)
	}
	if req.Group != "fsuipc/offset" || req.Name != "0x1000:1" {
		t.Fatalf("unexpected fields: %+v", req)
	}
}

func TestMessageReaderHandlesBackToBackMessages(t *testing.T) {
	first, _ := Serialize(UnsubscriptionRequest{SubsID: 1})
	second, _ := Serialize(UnsubscriptionRequest{SubsID: 2})

	mr := NewMessageReader(bytes.NewReader(append(first, second...)))

	m1, err := mr.ReadMessage()
	if err != nil {
		t.Fatalf("first ReadMessage failed: %v", err)
	}
	m2, err := mr.ReadMessage()
	if err != nil {
		t.Fatalf("second ReadMessage failed: %v", err)
	}

	if m1.(UnsubscriptionRequest).SubsID != 1 || m2.(UnsubscriptionRequest).SubsID != 2 {
		t.Fatalf("expected messages in order, got %+v then %+v", m1, m2)
	}
}

type byteAtATimeReader struct {
	data []byte
	pos  int
}

func (r *byteAtATimeReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, bytes.ErrTooLarge // unreachable in these tests
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

func isProtocolError(err error, target **ProtocolError) bool {
	pe, ok := err.(*ProtocolError)
	if ok {
		*target = pe
	}
	return ok
}
