package wire

import "io"

// WriteMessage serializes msg and writes it to w in one call.
func WriteMessage(w io.Writer, msg Message) error {
	b, err := Serialize(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// defaultReadChunk is how many bytes MessageReader asks the underlying
// reader for each time it needs more input.
const defaultReadChunk = 512

// MessageReader turns a byte stream into a sequence of Message values. It
// owns the accumulation buffer so callers never see or manage the
// mark/rewind-on-ErrEOF dance described by Deserialize: ReadMessage blocks,
// reading as many chunks as it takes, until one full message is available.
type MessageReader struct {
	r   io.Reader
	buf []byte
}

// NewMessageReader wraps r.
func NewMessageReader(r io.Reader) *MessageReader {
	return &MessageReader{r: r}
}

// ReadMessage returns the next message on the stream, reading from the
// underlying io.Reader as needed. It returns the underlying reader's error
// (typically io.EOF) if the connection closes with no partial message
// pending, and a *ProtocolError if the stream is desynchronized.
func (mr *MessageReader) ReadMessage() (Message, error) {
	for {
		msg, consumed, err := Deserialize(mr.buf)
		if err == nil {
			mr.buf = mr.buf[consumed:]
			return msg, nil
		}
		if err != ErrEOF {
			return nil, err
		}

		chunk := make([]byte, defaultReadChunk)
		n, readErr := mr.r.Read(chunk)
		if n > 0 {
			mr.buf = append(mr.buf, chunk[:n]...)
		}
		if readErr != nil {
			if n > 0 {
				// try once more with what we just appended before
				// surfacing the read error.
				if msg, consumed, derr := Deserialize(mr.buf); derr == nil {
					mr.buf = mr.buf[consumed:]
					return msg, nil
				}
			}
			return nil, readErr
		}
	}
}
