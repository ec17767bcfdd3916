package tracking

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
)

// dumpRecord is the fixed 84-byte little-endian record appended per epoch
// when dumping is enabled. Field order is the on-disk order; downstream
// analysis scripts index into it by offset, so it must not change.
type dumpRecord struct {
	AbsVE               float32
	AbsE                float32
	AbsP                float32
	AbsL                float32
	AbsVL               float32
	PromptI             float32
	PromptQ             float32
	SampleCounter       uint64
	AccCarrierPhaseRad  float32
	CarrierDopplerHz    float32
	CodeFreqHz          float32
	CarrError           float32
	CarrNCO             float32
	CodeError           float32
	CodeNCO             float32
	CN0DbHz             float32
	CarrierLockTest     float32
	RemCodePhaseSamples float32
	NextPRNStartSample  float64
}

// dumpWriter appends epoch records to the channel's dump file. Write errors
// are logged and swallowed; a broken dump never disturbs tracking.
type dumpWriter struct {
	f       *os.File
	channel int
}

func openDumpWriter(filename string, channel int) (*dumpWriter, error) {
	path := fmt.Sprintf("%s_%d.dat", filename, channel)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("dump: open %s: %w", path, err)
	}
	log.Printf("tracking dump enabled on channel %d, file %s", channel, path)
	return &dumpWriter{f: f, channel: channel}, nil
}

func (w *dumpWriter) write(rec *dumpRecord) {
	if err := binary.Write(w.f, binary.LittleEndian, rec); err != nil {
		log.Printf("channel %d: dump write failed: %v", w.channel, err)
	}
}

func (w *dumpWriter) close() error {
	if w == nil || w.f == nil {
		return nil
	}
	return w.f.Close()
}
