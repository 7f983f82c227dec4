package wamp

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// MessageType is the WAMP message code carried in a Frame's header.
type MessageType byte

const (
	TypeHello MessageType = iota + 1
	TypeWelcome
	TypeAbort
	TypeGoodbye
	TypeError
	TypeSubscribe
	TypeSubscribed
	TypeUnsubscribe
	TypeUnsubscribed
	TypeEvent
	TypePublish
	TypePublished
	TypeRegister
	TypeRegistered
	TypeUnregister
	TypeUnregistered
	TypeCall
	TypeCancel
	TypeInvocation
	TypeYield
	TypeResult
)

// ProtocolVersion identifies the framing layout below; bumped whenever
// Header's shape changes.
const ProtocolVersion uint16 = 1

// MaxFrameSize bounds a single frame's gob-encoded body.
const MaxFrameSize = 16 << 20

// Header is the fixed-size frame prefix (version/type/reserved/length)
// that WriteFrame writes and ReadFrame reads before each frame body.
type Header struct {
	Version  uint16
	Type     MessageType
	Reserved byte
	Length   uint32
}

const headerSize = 8

// Frame is one WAMP message: a type tag plus a gob-decodable payload.
type Frame struct {
	Type    MessageType
	Payload []byte
}

var bufferPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) { bufferPool.Put(buf) }

// EncodeFrame gob-encodes v and wraps it in a Frame of the given type.
func EncodeFrame(t MessageType, v any) (Frame, error) {
	if v == nil {
		return Frame{Type: t}, nil
	}
	buf := getBuffer()
	defer putBuffer(buf)
	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		return Frame{}, fmt.Errorf("wamp: gob encode: %w", err)
	}
	payload := make([]byte, buf.Len())
	copy(payload, buf.Bytes())
	return Frame{Type: t, Payload: payload}, nil
}

// Decode gob-decodes a Frame's payload into v.
func (f Frame) Decode(v any) error {
	if len(f.Payload) == 0 {
		return nil
	}
	dec := gob.NewDecoder(bytes.NewReader(f.Payload))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("wamp: gob decode: %w", err)
	}
	return nil
}

// WriteFrame writes one length-framed message to w.
func WriteFrame(w io.Writer, f Frame) error {
	if len(f.Payload) > MaxFrameSize {
		return fmt.Errorf("wamp: frame too large: %d > %d", len(f.Payload), MaxFrameSize)
	}
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(header[0:2], ProtocolVersion)
	header[2] = byte(f.Type)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(f.Payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wamp: write header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return fmt.Errorf("wamp: write body: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one length-framed message from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, fmt.Errorf("wamp: read header: %w", err)
	}
	version := binary.LittleEndian.Uint16(header[0:2])
	if version != ProtocolVersion {
		return Frame{}, &ProtocolError{Detail: fmt.Sprintf("version mismatch: got %d, want %d", version, ProtocolVersion)}
	}
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > MaxFrameSize {
		return Frame{}, fmt.Errorf("wamp: frame too large: %d > %d", length, MaxFrameSize)
	}
	var body []byte
	if length > 0 {
		body = make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return Frame{}, fmt.Errorf("wamp: read body: %w", err)
		}
	}
	return Frame{Type: MessageType(header[2]), Payload: body}, nil
}

// Transport is what a Session needs from its wire: send and receive one
// Frame at a time. WSTransport below is the production implementation;
// tests can supply an in-process pipe satisfying the same interface.
type Transport interface {
	Send(Frame) error
	Recv() (Frame, error)
	Close() error
}

// WSTransport carries Frames as binary websocket messages, each message
// body being exactly one WriteFrame/ReadFrame encoding.
type WSTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSTransport(conn *websocket.Conn) *WSTransport {
	return &WSTransport{conn: conn}
}

func (t *WSTransport) Send(f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	buf := getBuffer()
	defer putBuffer(buf)
	if err := WriteFrame(buf, f); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

func (t *WSTransport) Recv() (Frame, error) {
	kind, data, err := t.conn.ReadMessage()
	if err != nil {
		return Frame{}, fmt.Errorf("wamp: websocket read: %w", err)
	}
	if kind != websocket.BinaryMessage {
		return Frame{}, &ProtocolError{Detail: "non-binary websocket message"}
	}
	return ReadFrame(bytes.NewReader(data))
}

func (t *WSTransport) Close() error { return t.conn.Close() }
