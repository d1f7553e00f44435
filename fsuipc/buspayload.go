package fsuipc

import (
	"github.com/flightvars/flightvars/config"
	"github.com/flightvars/flightvars/varmodel"
)

// Bus payloads for an offset are [sender:1][reserved:1][value bytes...].
// sender 0 marks a message as self-originated (published by this
// process's own sampler tick), used to suppress write-back loops when
// the bus echoes a publish back to this sampler's own subscription.

func encodeBusPayload(sender byte, value []byte) []byte {
	buf := make([]byte, 2+len(value))
	buf[0] = sender
	buf[1] = 0
	copy(buf[2:], value)
	return buf
}

func decodeBusPayload(off config.Offset, payload []byte) (byte, varmodel.Value, error) {
	kind, err := kindForLength(off.Length)
	if err != nil {
		return 0, varmodel.Value{}, err
	}
	if len(payload) < 2+int(off.Length) {
		return 0, varmodel.Value{}, ErrMalformedPayload
	}
	sender := payload[0]
	value := bytesToValue(kind, payload[2:2+int(off.Length)])
	return sender, value, nil
}
