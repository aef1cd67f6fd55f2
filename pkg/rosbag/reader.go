package rosbag

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/open-teleop/robobag/pkg/rosmsg"
)

// MessageRecord is one timestamped message read from a bag.
type MessageRecord struct {
	Conn  uint32
	Topic string
	Time  rosmsg.Time
	Data  []byte
}

// Bag holds the fully-read contents of a bag file.
type Bag struct {
	Connections []Connection
	Messages    []MessageRecord
	ChunkCount  uint32
}

// ConnectionByTopic returns the connection for a topic, if present.
func (b *Bag) ConnectionByTopic(topic string) (Connection, bool) {
	for _, c := range b.Connections {
		if c.Topic == topic {
			return c, true
		}
	}
	return Connection{}, false
}

// MessagesOnTopic returns the messages recorded on a topic, in file order.
func (b *Bag) MessagesOnTopic(topic string) []MessageRecord {
	var out []MessageRecord
	for _, m := range b.Messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Open reads the bag file at path into memory.
func Open(path string) (*Bag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bag file '%s': %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read reads an entire bag from r. Only "none"-compressed chunks are
// supported. The index section is not required: messages are collected
// from the chunk contents directly.
func Read(r io.Reader) (*Bag, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: reading version line: %v", ErrBadRecord, err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("%w: bad version line %q", ErrBadRecord, string(magic))
	}

	bag := &Bag{}
	conns := make(map[uint32]*Connection)

	for {
		header, data, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := bag.handleRecord(header, data, conns); err != nil {
			return nil, err
		}
	}

	// Resolve topics now that all connection records are known.
	for i := range bag.Messages {
		if conn, ok := conns[bag.Messages[i].Conn]; ok {
			bag.Messages[i].Topic = conn.Topic
		}
	}
	return bag, nil
}

func (bag *Bag) handleRecord(header recordHeader, data []byte, conns map[uint32]*Connection) error {
	op, err := header.op()
	if err != nil {
		return err
	}

	switch op {
	case opBagHeader:
		count, err := header.uint32Field("chunk_count")
		if err != nil {
			return err
		}
		bag.ChunkCount = count

	case opChunk:
		compression, err := header.stringField("compression")
		if err != nil {
			return err
		}
		if compression != "none" {
			return fmt.Errorf("%w: %q", ErrUnsupportedCompression, compression)
		}
		inner := bytes.NewReader(data)
		for {
			innerHeader, innerData, err := readRecord(inner)
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("inside chunk: %w", err)
			}
			if err := bag.handleRecord(innerHeader, innerData, conns); err != nil {
				return err
			}
		}

	case opConnection:
		conn, err := parseConnection(header, data)
		if err != nil {
			return err
		}
		// Connection records repeat in the index section; first one wins.
		if _, seen := conns[conn.ID]; !seen {
			conns[conn.ID] = conn
			bag.Connections = append(bag.Connections, *conn)
		}

	case opMessageData:
		connID, err := header.uint32Field("conn")
		if err != nil {
			return err
		}
		t, err := header.timeField("time")
		if err != nil {
			return err
		}
		bag.Messages = append(bag.Messages, MessageRecord{
			Conn: connID,
			Time: t,
			Data: data,
		})

	case opIndexData, opChunkInfo:
		// Index records are redundant for a full sequential read.

	default:
		return fmt.Errorf("%w: unknown op 0x%02x", ErrBadRecord, op)
	}
	return nil
}
