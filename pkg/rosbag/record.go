// Package rosbag reads and writes ROS bag files (format version 2.0).
//
// A bag is a version line followed by a sequence of records. Every
// record is a length-prefixed header (a set of name=value fields)
// followed by a length-prefixed data block. Message and connection
// records live inside chunk records; the index section at the end of
// the file repeats the connection records and summarizes the chunks so
// tooling can seek without scanning.
package rosbag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/open-teleop/robobag/pkg/rosmsg"
)

// Magic is the version line that opens every bag file.
const Magic = "#ROSBAG V2.0\n"

// Record op codes.
const (
	opMessageData = 0x02
	opBagHeader   = 0x03
	opIndexData   = 0x04
	opChunk       = 0x05
	opChunkInfo   = 0x06
	opConnection  = 0x07
)

// Index and chunk info record versions written and understood.
const indexVersion = 1

// maxRecordLen caps the header and data lengths accepted when reading.
// The lengths come straight from the file, so a corrupt prefix must not
// turn into a multi-gigabyte allocation.
const maxRecordLen = 1 << 28

// Common errors
var (
	ErrBadRecord              = errors.New("malformed bag record")
	ErrUnsupportedCompression = errors.New("unsupported chunk compression")
	ErrWriterClosed           = errors.New("bag writer is closed")
)

// Connection describes one topic/type pair recorded in a bag.
type Connection struct {
	ID         uint32
	Topic      string
	Type       string
	MD5Sum     string
	Definition string
}

// headerBuilder assembles a record header field by field. Field order
// is the call order, which keeps written bags byte-stable.
type headerBuilder struct {
	buf bytes.Buffer
}

func (h *headerBuilder) appendField(name string, value []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(name)+1+len(value)))
	h.buf.Write(lenBuf[:])
	h.buf.WriteString(name)
	h.buf.WriteByte('=')
	h.buf.Write(value)
}

func (h *headerBuilder) appendString(name, value string) {
	h.appendField(name, []byte(value))
}

func (h *headerBuilder) appendOp(op byte) {
	h.appendField("op", []byte{op})
}

func (h *headerBuilder) appendUint32(name string, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	h.appendField(name, b[:])
}

func (h *headerBuilder) appendUint64(name string, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	h.appendField(name, b[:])
}

func (h *headerBuilder) appendTime(name string, t rosmsg.Time) {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[:4], t.Sec)
	binary.LittleEndian.PutUint32(b[4:], t.Nsec)
	h.appendField(name, b[:])
}

func (h *headerBuilder) bytes() []byte {
	return h.buf.Bytes()
}

// writeRecord writes one length-prefixed header and data block.
func writeRecord(w io.Writer, header, data []byte) error {
	var lenBuf [4]byte

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(header)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}

// recordHeader holds the decoded fields of one record header.
type recordHeader map[string][]byte

// parseHeader decodes the name=value fields of a record header.
func parseHeader(data []byte) (recordHeader, error) {
	fields := make(recordHeader)
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: truncated header field length", ErrBadRecord)
		}
		fieldLen := binary.LittleEndian.Uint32(data)
		data = data[4:]
		if uint32(len(data)) < fieldLen {
			return nil, fmt.Errorf("%w: header field longer than header", ErrBadRecord)
		}
		field := data[:fieldLen]
		data = data[fieldLen:]

		eq := bytes.IndexByte(field, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: header field without '='", ErrBadRecord)
		}
		fields[string(field[:eq])] = field[eq+1:]
	}
	return fields, nil
}

func (h recordHeader) op() (byte, error) {
	v, ok := h["op"]
	if !ok || len(v) != 1 {
		return 0, fmt.Errorf("%w: missing op field", ErrBadRecord)
	}
	return v[0], nil
}

func (h recordHeader) uint32Field(name string) (uint32, error) {
	v, ok := h[name]
	if !ok || len(v) != 4 {
		return 0, fmt.Errorf("%w: missing or malformed field '%s'", ErrBadRecord, name)
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (h recordHeader) uint64Field(name string) (uint64, error) {
	v, ok := h[name]
	if !ok || len(v) != 8 {
		return 0, fmt.Errorf("%w: missing or malformed field '%s'", ErrBadRecord, name)
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (h recordHeader) stringField(name string) (string, error) {
	v, ok := h[name]
	if !ok {
		return "", fmt.Errorf("%w: missing field '%s'", ErrBadRecord, name)
	}
	return string(v), nil
}

func (h recordHeader) timeField(name string) (rosmsg.Time, error) {
	v, ok := h[name]
	if !ok || len(v) != 8 {
		return rosmsg.Time{}, fmt.Errorf("%w: missing or malformed field '%s'", ErrBadRecord, name)
	}
	return rosmsg.Time{
		Sec:  binary.LittleEndian.Uint32(v[:4]),
		Nsec: binary.LittleEndian.Uint32(v[4:]),
	}, nil
}

// readRecord reads one record from r. It returns the decoded header
// fields and the raw data block, or io.EOF at a clean end of stream.
func readRecord(r io.Reader) (recordHeader, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, nil, io.EOF
		}
		return nil, nil, fmt.Errorf("%w: reading header length: %v", ErrBadRecord, err)
	}
	headerLen := binary.LittleEndian.Uint32(lenBuf[:])
	if headerLen > maxRecordLen {
		return nil, nil, fmt.Errorf("%w: header length %d exceeds limit", ErrBadRecord, headerLen)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("%w: reading header: %v", ErrBadRecord, err)
	}

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: reading data length: %v", ErrBadRecord, err)
	}
	dataLen := binary.LittleEndian.Uint32(lenBuf[:])
	if dataLen > maxRecordLen {
		return nil, nil, fmt.Errorf("%w: data length %d exceeds limit", ErrBadRecord, dataLen)
	}

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, nil, fmt.Errorf("%w: reading data: %v", ErrBadRecord, err)
	}

	header, err := parseHeader(headerBytes)
	if err != nil {
		return nil, nil, err
	}
	return header, data, nil
}

// connectionData encodes the data block of a connection record, which
// is itself a header-style field set.
func connectionData(c *Connection) []byte {
	var h headerBuilder
	h.appendString("topic", c.Topic)
	h.appendString("type", c.Type)
	h.appendString("md5sum", c.MD5Sum)
	h.appendString("message_definition", c.Definition)
	return h.bytes()
}

// parseConnection decodes a connection record's header and data block.
func parseConnection(header recordHeader, data []byte) (*Connection, error) {
	id, err := header.uint32Field("conn")
	if err != nil {
		return nil, err
	}

	fields, err := parseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("connection %d: %w", id, err)
	}

	conn := &Connection{ID: id}
	if conn.Topic, err = fields.stringField("topic"); err != nil {
		return nil, err
	}
	if conn.Type, err = fields.stringField("type"); err != nil {
		return nil, err
	}
	if conn.MD5Sum, err = fields.stringField("md5sum"); err != nil {
		return nil, err
	}
	if conn.Definition, err = fields.stringField("message_definition"); err != nil {
		return nil, err
	}
	return conn, nil
}
