package gnss

import "fmt"

// System letters as used in observables records.
const (
	SystemGPS     byte = 'G'
	SystemGlonass byte = 'R'
	SystemSBAS    byte = 'S'
	SystemGalileo byte = 'E'
	SystemCompass byte = 'C'
)

var systemNames = map[byte]string{
	SystemGPS:     "GPS",
	SystemGlonass: "GLONASS",
	SystemSBAS:    "SBAS",
	SystemGalileo: "Galileo",
	SystemCompass: "Compass",
}

// Satellite identifies a signal source by constellation letter and PRN number.
type Satellite struct {
	System byte `json:"-"`
	PRN    int  `json:"prn"`
}

func (s Satellite) String() string {
	name, ok := systemNames[s.System]
	if !ok {
		name = string(s.System)
	}
	return fmt.Sprintf("%s PRN %02d", name, s.PRN)
}

// Synchro is the per-epoch synchronization record exchanged between the
// tracking stage and the downstream telemetry decoder / PVT solver.
//
// PromptI carries the imaginary part of the prompt correlator and PromptQ the
// real part. Downstream decoders depend on that assignment; do not "fix" it.
type Synchro struct {
	System byte   `json:"system"`
	PRN    int    `json:"prn"`
	Signal string `json:"signal,omitempty"`

	// Acquisition handoff, copied verbatim into every record.
	AcqDelaySamples       float64 `json:"acq_delay_samples"`
	AcqDopplerHz          float64 `json:"acq_doppler_hz"`
	AcqSamplestampSamples uint64  `json:"acq_samplestamp_samples"`

	PromptI float64 `json:"prompt_i"`
	PromptQ float64 `json:"prompt_q"`

	// TrackingTimestampSecs is aligned with the start sample of the next PRN
	// period; CodePhaseSecs is therefore always zero for this block.
	TrackingTimestampSecs float64 `json:"tracking_timestamp_secs"`
	CodePhaseSecs         float64 `json:"code_phase_secs"`
	CarrierPhaseRads      float64 `json:"carrier_phase_rads"`
	CN0DbHz               float64 `json:"cn0_db_hz"`

	SampleCounter uint64 `json:"sample_counter"`
}

// Satellite returns the satellite identity carried by the record.
func (s *Synchro) Satellite() Satellite {
	return Satellite{System: s.System, PRN: s.PRN}
}
