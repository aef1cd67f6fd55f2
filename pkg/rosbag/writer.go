package rosbag

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/open-teleop/robobag/pkg/rosmsg"
)

// The bag header record is padded to a fixed size so it can be
// rewritten in place once the index position is known.
const bagHeaderRecordSize = 4096

type indexEntry struct {
	time   rosmsg.Time
	offset uint32
}

// Writer writes messages into a bag file as a single "none"-compressed
// chunk followed by the standard index section. Close must be called
// to produce a valid bag; it is safe to call from a deferred path and
// is idempotent.
type Writer struct {
	w      io.WriteSeeker
	closer io.Closer

	conns    map[string]*Connection
	connList []*Connection

	chunk      bytes.Buffer
	chunkIndex map[uint32][]indexEntry

	startTime rosmsg.Time
	endTime   rosmsg.Time
	haveTime  bool

	chunkCount uint32
	closed     bool
	closeErr   error
}

// NewWriter starts a new bag on w, writing the version line and a
// placeholder bag header that Close rewrites.
func NewWriter(w io.WriteSeeker) (*Writer, error) {
	bw := &Writer{
		w:          w,
		conns:      make(map[string]*Connection),
		chunkIndex: make(map[uint32][]indexEntry),
	}

	if _, err := io.WriteString(w, Magic); err != nil {
		return nil, fmt.Errorf("failed to write bag version line: %w", err)
	}
	if err := bw.writeBagHeader(0, 0, 0); err != nil {
		return nil, fmt.Errorf("failed to write bag header: %w", err)
	}
	return bw, nil
}

// Create creates the file at path and starts a bag on it. The file is
// closed by Close.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create bag file '%s': %w", path, err)
	}
	bw, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	bw.closer = f
	return bw, nil
}

// WriteMessage appends one message on the given topic. The connection
// record for the topic is created on first use.
func (bw *Writer) WriteMessage(topic string, t rosmsg.Time, msg rosmsg.Message) error {
	if bw.closed {
		return ErrWriterClosed
	}

	conn, ok := bw.conns[topic]
	if !ok {
		conn = &Connection{
			ID:         uint32(len(bw.connList)),
			Topic:      topic,
			Type:       msg.Type(),
			MD5Sum:     msg.MD5Sum(),
			Definition: msg.Definition(),
		}
		bw.conns[topic] = conn
		bw.connList = append(bw.connList, conn)
		if err := bw.writeConnectionRecord(&bw.chunk, conn); err != nil {
			return err
		}
	} else if conn.Type != msg.Type() {
		return fmt.Errorf("topic '%s' already carries %s, cannot write %s", topic, conn.Type, msg.Type())
	}

	payload, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type(), err)
	}

	offset := uint32(bw.chunk.Len())

	var h headerBuilder
	h.appendOp(opMessageData)
	h.appendUint32("conn", conn.ID)
	h.appendTime("time", t)
	if err := writeRecord(&bw.chunk, h.bytes(), payload); err != nil {
		return fmt.Errorf("failed to buffer message record: %w", err)
	}

	bw.chunkIndex[conn.ID] = append(bw.chunkIndex[conn.ID], indexEntry{time: t, offset: offset})

	if !bw.haveTime {
		bw.startTime, bw.endTime = t, t
		bw.haveTime = true
	} else {
		if t.Before(bw.startTime) {
			bw.startTime = t
		}
		if bw.endTime.Before(t) {
			bw.endTime = t
		}
	}
	return nil
}

// Close flushes the chunk, writes the index section, rewrites the bag
// header, and closes the underlying file when the writer owns it.
func (bw *Writer) Close() error {
	if bw.closed {
		return bw.closeErr
	}
	bw.closed = true
	bw.closeErr = bw.finish()

	if bw.closer != nil {
		if err := bw.closer.Close(); err != nil && bw.closeErr == nil {
			bw.closeErr = fmt.Errorf("failed to close bag file: %w", err)
		}
	}
	return bw.closeErr
}

func (bw *Writer) finish() error {
	var chunkPos int64

	if bw.chunk.Len() > 0 {
		pos, err := bw.w.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("failed to locate chunk position: %w", err)
		}
		chunkPos = pos

		chunkData := bw.chunk.Bytes()
		var h headerBuilder
		h.appendOp(opChunk)
		h.appendString("compression", "none")
		h.appendUint32("size", uint32(len(chunkData)))
		if err := writeRecord(bw.w, h.bytes(), chunkData); err != nil {
			return fmt.Errorf("failed to write chunk record: %w", err)
		}
		bw.chunkCount = 1

		for _, conn := range bw.connList {
			if err := bw.writeIndexRecord(conn.ID, bw.chunkIndex[conn.ID]); err != nil {
				return err
			}
		}
	}

	indexPos, err := bw.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to locate index position: %w", err)
	}

	for _, conn := range bw.connList {
		if err := bw.writeConnectionRecord(bw.w, conn); err != nil {
			return err
		}
	}

	if bw.chunkCount > 0 {
		if err := bw.writeChunkInfoRecord(uint64(chunkPos)); err != nil {
			return err
		}
	}

	// Rewrite the bag header now that the index position is known.
	if _, err := bw.w.Seek(int64(len(Magic)), io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to bag header: %w", err)
	}
	if err := bw.writeBagHeader(uint64(indexPos), uint32(len(bw.connList)), bw.chunkCount); err != nil {
		return fmt.Errorf("failed to rewrite bag header: %w", err)
	}
	if _, err := bw.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek past bag header: %w", err)
	}
	return nil
}

func (bw *Writer) writeBagHeader(indexPos uint64, connCount, chunkCount uint32) error {
	var h headerBuilder
	h.appendOp(opBagHeader)
	h.appendUint64("index_pos", indexPos)
	h.appendUint32("conn_count", connCount)
	h.appendUint32("chunk_count", chunkCount)

	header := h.bytes()
	padLen := bagHeaderRecordSize - 8 - len(header)
	if padLen < 0 {
		return fmt.Errorf("%w: bag header exceeds %d bytes", ErrBadRecord, bagHeaderRecordSize)
	}
	return writeRecord(bw.w, header, bytes.Repeat([]byte{' '}, padLen))
}

func (bw *Writer) writeConnectionRecord(w io.Writer, conn *Connection) error {
	var h headerBuilder
	h.appendOp(opConnection)
	h.appendUint32("conn", conn.ID)
	h.appendString("topic", conn.Topic)
	if err := writeRecord(w, h.bytes(), connectionData(conn)); err != nil {
		return fmt.Errorf("failed to write connection record for '%s': %w", conn.Topic, err)
	}
	return nil
}

func (bw *Writer) writeIndexRecord(connID uint32, entries []indexEntry) error {
	var h headerBuilder
	h.appendOp(opIndexData)
	h.appendUint32("ver", indexVersion)
	h.appendUint32("conn", connID)
	h.appendUint32("count", uint32(len(entries)))

	var data bytes.Buffer
	var b [4]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint32(b[:], e.time.Sec)
		data.Write(b[:])
		binary.LittleEndian.PutUint32(b[:], e.time.Nsec)
		data.Write(b[:])
		binary.LittleEndian.PutUint32(b[:], e.offset)
		data.Write(b[:])
	}

	if err := writeRecord(bw.w, h.bytes(), data.Bytes()); err != nil {
		return fmt.Errorf("failed to write index record for connection %d: %w", connID, err)
	}
	return nil
}

func (bw *Writer) writeChunkInfoRecord(chunkPos uint64) error {
	var h headerBuilder
	h.appendOp(opChunkInfo)
	h.appendUint32("ver", indexVersion)
	h.appendUint64("chunk_pos", chunkPos)
	h.appendTime("start_time", bw.startTime)
	h.appendTime("end_time", bw.endTime)
	h.appendUint32("count", uint32(len(bw.connList)))

	var data bytes.Buffer
	var b [4]byte
	for _, conn := range bw.connList {
		binary.LittleEndian.PutUint32(b[:], conn.ID)
		data.Write(b[:])
		binary.LittleEndian.PutUint32(b[:], uint32(len(bw.chunkIndex[conn.ID])))
		data.Write(b[:])
	}

	if err := writeRecord(bw.w, h.bytes(), data.Bytes()); err != nil {
		return fmt.Errorf("failed to write chunk info record: %w", err)
	}
	return nil
}
