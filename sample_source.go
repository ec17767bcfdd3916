package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// SampleSource reads a recorded complex baseband stream of interleaved
// float32 I/Q pairs. Files ending in .gz are decompressed on the fly; "-"
// reads from stdin.
type SampleSource struct {
	r       io.Reader
	closers []io.Closer
	raw     []byte
}

// OpenSampleSource opens the configured IQ stream
func OpenSampleSource(path string) (*SampleSource, error) {
	s := &SampleSource{}

	var base io.Reader
	if path == "-" {
		base = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sample source: %w", err)
		}
		s.closers = append(s.closers, f)
		base = f
	}

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(base)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open gzip sample source: %w", err)
		}
		s.closers = append(s.closers, gz)
		base = gz
	}

	s.r = bufio.NewReaderSize(base, 1<<20)
	return s, nil
}

// Read fills dst with as many complete samples as the stream yields and
// returns the count. io.EOF signals a cleanly exhausted stream; a trailing
// partial sample is reported as unexpected EOF.
func (s *SampleSource) Read(dst []complex64) (int, error) {
	want := len(dst) * 8
	if cap(s.raw) < want {
		s.raw = make([]byte, want)
	}
	buf := s.raw[:want]

	n, err := io.ReadFull(s.r, buf)
	samples := n / 8
	for i := 0; i < samples; i++ {
		re := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8+4:]))
		dst[i] = complex(re, im)
	}

	switch err {
	case nil:
		return samples, nil
	case io.ErrUnexpectedEOF:
		if n%8 != 0 {
			return samples, fmt.Errorf("sample source: truncated sample at end of stream: %w", io.ErrUnexpectedEOF)
		}
		return samples, io.EOF
	default:
		return samples, err
	}
}

// Close releases the underlying file and decompressor
func (s *SampleSource) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		log.Printf("sample source close: %v", firstErr)
	}
	return firstErr
}
