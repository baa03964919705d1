package base

import (
	"encoding/binary"
	"io"
	"net"
)

const frameHeaderSize = 20

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: shardId (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer.
// If the buffer is too small, a temporary buffer is allocated for the data.
func readFrame(conn io.Reader, buf []byte) (uint64, uint64, []byte, error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	shardID := binary.BigEndian.Uint64(buf[:8])
	requestID := binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	if contentLength == 0 {
		return shardID, requestID, []byte{}, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	return shardID, requestID, buf[:contentLength], nil
}
