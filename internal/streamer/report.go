package streamer

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/iotile-sg/sensorgraph/internal/sensorlog"
	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// Compression selects the wire encoding for an assembled report's
// payload, grounded on the teacher's CompressionGzip/CompressionZstd
// frame constants.
type Compression byte

const (
	CompressionGzip Compression = 0x00 // pgzip, parallel — default
	CompressionZstd Compression = 0x01 // klauspost/compress/zstd
)

// readingSize is the on-wire encoded size of one reading: stream(2) +
// raw_time(4) + value(4) + reading_id(4).
const readingSize = 14

// Report is an assembled batch of readings ready for an (out-of-scope)
// transport layer to send: the raw readings, their encoded-and-compressed
// payload, and a checksum over the uncompressed encoding.
type Report struct {
	Streamer    int
	ReportType  ReportType
	Compression Compression
	Readings    []stream.Reading
	Payload     []byte
	Checksum    [32]byte
}

// Assemble drains every reading the streamer's walker currently has
// buffered and encodes them into one or more Reports: BroadcastReports
// produces a single combined Report, IndividualReports produces one
// Report per reading — the distinction SPEC_FULL.md supplements from the
// original's report_type field.
func Assemble(s *Streamer, compression Compression) ([]*Report, error) {
	var readings []stream.Reading
	for {
		r, err := s.walker.Pop()
		if err != nil {
			if err == sensorlog.ErrStreamEmpty {
				break
			}
			return nil, err
		}
		readings = append(readings, r)
	}

	if len(readings) == 0 {
		return nil, nil
	}

	if s.ReportType == IndividualReports {
		reports := make([]*Report, 0, len(readings))
		for _, r := range readings {
			rep, err := buildReport(s.Index, s.ReportType, compression, []stream.Reading{r})
			if err != nil {
				return nil, err
			}
			reports = append(reports, rep)
		}
		return reports, nil
	}

	rep, err := buildReport(s.Index, s.ReportType, compression, readings)
	if err != nil {
		return nil, err
	}
	return []*Report{rep}, nil
}

func buildReport(streamerIdx int, reportType ReportType, compression Compression, readings []stream.Reading) (*Report, error) {
	encoded := encodeReadings(readings)
	checksum := sha256.Sum256(encoded)

	payload, err := compress(encoded, compression)
	if err != nil {
		return nil, err
	}

	return &Report{
		Streamer:    streamerIdx,
		ReportType:  reportType,
		Compression: compression,
		Readings:    readings,
		Payload:     payload,
		Checksum:    checksum,
	}, nil
}

func encodeReadings(readings []stream.Reading) []byte {
	buf := make([]byte, 0, len(readings)*readingSize)
	for _, r := range readings {
		var tmp [readingSize]byte
		binary.BigEndian.PutUint16(tmp[0:2], uint16(r.Stream))
		binary.BigEndian.PutUint32(tmp[2:6], r.RawTime)
		binary.BigEndian.PutUint32(tmp[6:10], r.Value)
		binary.BigEndian.PutUint32(tmp[10:14], r.ReadingID)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func compress(data []byte, mode Compression) ([]byte, error) {
	switch mode {
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("streamer: building zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := pgzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("streamer: gzip compressing report: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("streamer: closing gzip writer: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("streamer: unknown compression mode %d", mode)
	}
}
