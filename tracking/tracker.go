package tracking

import (
	"fmt"
	"log"
	"math"

	"github.com/gnsslab/ubertrack/dsp"
	"github.com/gnsslab/ubertrack/galileo"
	"github.com/gnsslab/ubertrack/gnss"
)

// Config holds the per-channel tracking parameters.
type Config struct {
	IFFreqHz                float64 `yaml:"if_freq_hz"`
	FsIn                    float64 `yaml:"fs_in"`
	VectorLength            int     `yaml:"vector_length"`
	PLLBandwidthHz          float64 `yaml:"pll_bw_hz"`
	DLLBandwidthHz          float64 `yaml:"dll_bw_hz"`
	EarlyLateSpaceChips     float64 `yaml:"early_late_space_chips"`
	VeryEarlyLateSpaceChips float64 `yaml:"very_early_late_space_chips"`
	Dump                    bool    `yaml:"dump"`
	DumpFilename            string  `yaml:"dump_filename"`
	MaxLockFails            int     `yaml:"max_lock_fails"`
	CarrierLockThreshold    float64 `yaml:"carrier_lock_threshold"`
	MinValidCN0DbHz         float64 `yaml:"min_valid_cn0_db_hz"`
	CN0Window               int     `yaml:"cn0_window"`
}

// Validate fills defaults and rejects inconsistent parameters.
func (c *Config) Validate() error {
	if c.FsIn <= 0 {
		return fmt.Errorf("tracking config: fs_in must be positive, got %g", c.FsIn)
	}
	if c.VectorLength <= 0 {
		return fmt.Errorf("tracking config: vector_length must be positive, got %d", c.VectorLength)
	}
	if c.PLLBandwidthHz <= 0 || c.DLLBandwidthHz <= 0 {
		return fmt.Errorf("tracking config: loop bandwidths must be positive (pll %g, dll %g)",
			c.PLLBandwidthHz, c.DLLBandwidthHz)
	}
	if c.EarlyLateSpaceChips <= 0 {
		return fmt.Errorf("tracking config: early_late_space_chips must be positive, got %g",
			c.EarlyLateSpaceChips)
	}
	if c.VeryEarlyLateSpaceChips <= c.EarlyLateSpaceChips {
		return fmt.Errorf("tracking config: very_early_late_space_chips (%g) must exceed early_late_space_chips (%g)",
			c.VeryEarlyLateSpaceChips, c.EarlyLateSpaceChips)
	}
	if c.MaxLockFails == 0 {
		c.MaxLockFails = 200
	}
	if c.CarrierLockThreshold == 0 {
		c.CarrierLockThreshold = 0.85
	}
	if c.MinValidCN0DbHz == 0 {
		c.MinValidCN0DbHz = 25
	}
	if c.CN0Window == 0 {
		c.CN0Window = 10
	}
	if c.Dump && c.DumpFilename == "" {
		c.DumpFilename = "tracking"
	}
	return nil
}

// Tracker is one closed-loop tracking channel. It is single-threaded: the
// owning goroutine alternates SetGnssSynchro/StartTracking and Step calls.
// Only the control bus is shared across channels.
type Tracker struct {
	cfg      Config
	provider galileo.CodeProvider
	bus      *ControlBus
	channel  int

	acq            *gnss.Synchro
	prn            int
	acqCodePhase   float64
	acqDopplerHz   float64
	acqSampleStamp uint64

	enableTracking bool
	pullIn         bool

	replica  *codeReplica
	carrSign []complex64

	carrierFilter SecondOrderFilter
	codeFilter    SecondOrderFilter

	carrierDopplerHz    float64
	codeFreqHz          float64
	remCarrPhaseRad     float64
	accCarrierPhaseRad  float64
	remCodePhaseSamples float64
	nextRemCodePhase    float64
	currentPRNLength    int
	nextPRNLength       int
	sampleCounter       uint64

	promptBuf  []complex128
	cn0Counter int
	lockFails  int
	cn0DbHz    float64
	lockTest   float64

	dump    *dumpWriter
	lastSeg int64
}

// New builds an idle tracking channel. The code provider supplies primary
// codes at StartTracking time; the bus receives loss-of-lock messages.
func New(cfg Config, provider galileo.CodeProvider, bus *ControlBus) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("tracking: nil code provider")
	}
	t := &Tracker{
		cfg:              cfg,
		provider:         provider,
		bus:              bus,
		replica:          newCodeReplica(2 * cfg.VectorLength),
		carrSign:         make([]complex64, 2*cfg.VectorLength),
		promptBuf:        make([]complex128, cfg.CN0Window),
		codeFreqHz:       galileo.CodeChipRateHz,
		currentPRNLength: cfg.VectorLength,
		nextPRNLength:    cfg.VectorLength,
	}
	t.carrierFilter = NewSecondOrderFilter(cfg.PLLBandwidthHz, galileo.CodePeriodSeconds)
	t.codeFilter = NewSecondOrderFilter(cfg.DLLBandwidthHz, galileo.CodePeriodSeconds)
	return t, nil
}

// SetChannel assigns the channel index and, when dumping is enabled, opens
// the dump file. An open failure disables dumping for this channel only.
func (t *Tracker) SetChannel(n int) {
	t.channel = n
	if t.cfg.Dump && t.dump == nil {
		w, err := openDumpWriter(t.cfg.DumpFilename, n)
		if err != nil {
			log.Printf("channel %d: %v, dump disabled", n, err)
			t.cfg.Dump = false
			return
		}
		t.dump = w
	}
}

// Channel returns the channel index.
func (t *Tracker) Channel() int {
	return t.channel
}

// SetGnssSynchro binds the acquisition handoff record consumed by the next
// StartTracking call. The caller must order this before StartTracking.
func (t *Tracker) SetGnssSynchro(s *gnss.Synchro) {
	t.acq = s
}

// StartTracking arms the channel from the bound acquisition handoff: it
// rebuilds the local code for the acquired PRN, resets both loop filters and
// all per-pass state, and schedules the pull-in alignment epoch. Calling it
// again with the same handoff restarts the pass from scratch.
func (t *Tracker) StartTracking() error {
	if t.acq == nil {
		return fmt.Errorf("tracking: no acquisition handoff bound")
	}
	chips, err := t.provider.PrimaryCode(t.acq.PRN)
	if err != nil {
		return fmt.Errorf("tracking: %w", err)
	}
	if err := t.replica.build(chips); err != nil {
		return fmt.Errorf("tracking: %w", err)
	}

	t.prn = t.acq.PRN
	t.acqCodePhase = t.acq.AcqDelaySamples
	t.acqDopplerHz = t.acq.AcqDopplerHz + t.cfg.IFFreqHz
	t.acqSampleStamp = t.acq.AcqSamplestampSamples

	t.carrierFilter.Init()
	t.codeFilter.Init()

	t.carrierDopplerHz = t.acqDopplerHz
	t.codeFreqHz = galileo.CodeChipRateHz
	t.remCarrPhaseRad = 0
	t.accCarrierPhaseRad = 0
	t.remCodePhaseSamples = 0
	t.nextRemCodePhase = 0
	t.currentPRNLength = t.cfg.VectorLength
	t.nextPRNLength = t.cfg.VectorLength
	t.cn0Counter = 0
	t.lockFails = 0
	t.cn0DbHz = 0
	t.lockTest = 0

	t.pullIn = true
	t.enableTracking = true

	log.Printf("channel %d: start tracking %s, doppler %.0f Hz, code phase %.2f samples",
		t.channel, gnss.Satellite{System: gnss.SystemGalileo, PRN: t.prn}, t.acqDopplerHz, t.acqCodePhase)
	return nil
}

// Tracking reports whether the channel is armed (pull-in or running).
func (t *Tracker) Tracking() bool {
	return t.enableTracking
}

// Step runs one scheduler invocation over in and returns the number of input
// samples consumed plus the epoch's synchronization record. The caller must
// supply at least 2*vector_length samples; with less the epoch does not run.
func (t *Tracker) Step(in []complex64) (int, gnss.Synchro, error) {
	if len(in) < 2*t.cfg.VectorLength {
		return 0, gnss.Synchro{}, fmt.Errorf("tracking: need %d input samples, have %d",
			2*t.cfg.VectorLength, len(in))
	}
	if !t.enableTracking {
		return t.stepIdle()
	}
	if t.pullIn {
		return t.stepPullIn()
	}
	return t.stepRunning(in)
}

// stepPullIn discards input up to the next PRN start so the first correlated
// epoch is code-aligned with the acquisition estimate.
func (t *Tracker) stepPullIn() (int, gnss.Synchro, error) {
	vectorLength := uint64(t.nextPRNLength)
	delay := t.sampleCounter - t.acqSampleStamp
	shift := vectorLength - delay%vectorLength
	samplesOffset := int(math.Round(t.acqCodePhase + float64(shift)))
	if samplesOffset < 1 {
		samplesOffset = 1
	}
	t.sampleCounter += uint64(samplesOffset)
	t.pullIn = false

	out := *t.acq
	out.System = gnss.SystemGalileo
	out.SampleCounter = t.sampleCounter
	return samplesOffset, out, nil
}

// stepRunning executes one full correlate-discriminate-filter epoch.
func (t *Tracker) stepRunning(in []complex64) (int, gnss.Synchro, error) {
	t.currentPRNLength = t.nextPRNLength
	n := t.currentPRNLength

	veCode, eCode, pCode, lCode, vlCode := t.replica.resample(n,
		t.remCodePhaseSamples, t.codeFreqHz, t.cfg.FsIn,
		t.cfg.EarlyLateSpaceChips, t.cfg.VeryEarlyLateSpaceChips)
	t.updateCarrier(n)

	ve, e, p, l, vl := dsp.CorrelateVEML(in[:n], t.carrSign[:n], veCode, eCode, pCode, lCode, vlCode)

	carrError := sanitize(dsp.PLLTwoQuadrantAtan(p))
	carrNCO := t.carrierFilter.Update(carrError)
	t.carrierDopplerHz = t.acqDopplerHz + carrNCO

	codeError := sanitize(dsp.DLLNormalizedVEML(ve, vl))
	codeNCO := t.codeFilter.Update(codeError)
	t.codeFreqHz = galileo.CodeChipRateHz - codeNCO

	t.updateEpochLength()
	t.updateLockMonitor(p)

	out := *t.acq
	out.System = gnss.SystemGalileo
	out.PRN = t.prn
	out.PromptI = imag(p)
	out.PromptQ = real(p)
	out.TrackingTimestampSecs = (float64(t.sampleCounter) + float64(t.nextPRNLength) + t.nextRemCodePhase) / t.cfg.FsIn
	out.CodePhaseSecs = 0
	out.CarrierPhaseRads = t.accCarrierPhaseRad
	out.CN0DbHz = t.cn0DbHz
	out.SampleCounter = t.sampleCounter

	t.logSecondStatus()

	if t.cfg.Dump {
		t.dump.write(&dumpRecord{
			AbsVE:               abs32(ve),
			AbsE:                abs32(e),
			AbsP:                abs32(p),
			AbsL:                abs32(l),
			AbsVL:               abs32(vl),
			PromptI:             float32(imag(p)),
			PromptQ:             float32(real(p)),
			SampleCounter:       t.sampleCounter,
			AccCarrierPhaseRad:  float32(t.accCarrierPhaseRad),
			CarrierDopplerHz:    float32(t.carrierDopplerHz),
			CodeFreqHz:          float32(t.codeFreqHz),
			CarrError:           float32(carrError),
			CarrNCO:             float32(carrNCO),
			CodeError:           float32(codeError),
			CodeNCO:             float32(codeNCO),
			CN0DbHz:             float32(t.cn0DbHz),
			CarrierLockTest:     float32(t.lockTest),
			RemCodePhaseSamples: float32(t.remCodePhaseSamples),
			NextPRNStartSample:  float64(t.sampleCounter) + float64(t.currentPRNLength),
		})
	}

	t.sampleCounter += uint64(t.currentPRNLength)
	return t.currentPRNLength, out, nil
}

// stepIdle consumes one nominal epoch and emits an empty record so the
// downstream stream stays epoch-paced while the channel waits for a handoff.
func (t *Tracker) stepIdle() (int, gnss.Synchro, error) {
	if t.cfg.Dump {
		t.dump.write(&dumpRecord{
			SampleCounter:       t.sampleCounter,
			CarrierDopplerHz:    float32(t.carrierDopplerHz),
			CodeFreqHz:          float32(t.codeFreqHz),
			CN0DbHz:             float32(t.cn0DbHz),
			CarrierLockTest:     float32(t.lockTest),
			RemCodePhaseSamples: float32(t.remCodePhaseSamples),
			NextPRNStartSample:  float64(t.sampleCounter) + float64(t.currentPRNLength),
		})
	}
	t.sampleCounter += uint64(t.currentPRNLength)
	return t.currentPRNLength, gnss.Synchro{}, nil
}

// updateCarrier regenerates the carrier phasor table for n samples and
// carries the phase remainder into the next epoch.
func (t *Tracker) updateCarrier(n int) {
	phaseStep := 2 * math.Pi * t.carrierDopplerHz / t.cfg.FsIn
	phase := t.remCarrPhaseRad
	for i := 0; i < n; i++ {
		sin, cos := math.Sincos(phase)
		t.carrSign[i] = complex(float32(cos), float32(sin))
		phase += phaseStep
	}
	rem := math.Mod(phase, 2*math.Pi)
	if rem < 0 {
		rem += 2 * math.Pi
		// A remainder smaller than the spacing of floats near 2*pi rounds up
		// to exactly 2*pi; fold it back so the phase stays in [0, 2*pi).
		if rem >= 2*math.Pi {
			rem = 0
		}
	}
	t.remCarrPhaseRad = rem
	t.accCarrierPhaseRad += rem
}

// updateEpochLength rolls the code NCO into the next epoch's sample count,
// keeping the fractional remainder so no code phase is lost to rounding.
func (t *Tracker) updateEpochLength() {
	tPrnSamples := galileo.CodeLengthChips / t.codeFreqHz * t.cfg.FsIn
	t.remCodePhaseSamples = t.nextRemCodePhase
	k := tPrnSamples + t.remCodePhaseSamples
	t.nextPRNLength = int(math.Round(k))
	t.nextRemCodePhase = k - float64(t.nextPRNLength)
}

// updateLockMonitor accumulates prompt outputs and, once per full window,
// refreshes the C/N0 estimate and the lock test. A window counts as failed
// when the lock metric magnitude exceeds the threshold or the C/N0 falls
// below the validity floor; enough consecutive failures idle the channel and
// post a loss-of-lock message.
func (t *Tracker) updateLockMonitor(p complex128) {
	t.promptBuf[t.cn0Counter] = p
	t.cn0Counter++
	if t.cn0Counter < t.cfg.CN0Window {
		return
	}
	t.cn0Counter = 0
	t.cn0DbHz = dsp.CN0SNV(t.promptBuf, t.cfg.FsIn, t.cfg.VectorLength)
	t.lockTest = dsp.CarrierLockDetector(t.promptBuf)

	if math.Abs(t.lockTest) > t.cfg.CarrierLockThreshold || t.cn0DbHz < t.cfg.MinValidCN0DbHz {
		t.lockFails++
	} else if t.lockFails > 0 {
		t.lockFails--
	}
	if t.lockFails > t.cfg.MaxLockFails {
		log.Printf("channel %d: %s loss of lock, CN0 %.2f dB-Hz",
			t.channel, gnss.Satellite{System: gnss.SystemGalileo, PRN: t.prn}, t.cn0DbHz)
		if t.bus != nil {
			t.bus.Post(Message{Channel: t.channel, ID: MsgLossOfLock})
		}
		t.lockFails = 0
		t.enableTracking = false
	}
}

// logSecondStatus prints one status line per second of input signal time.
func (t *Tracker) logSecondStatus() {
	seg := int64(float64(t.sampleCounter) / t.cfg.FsIn)
	if seg == t.lastSeg {
		return
	}
	t.lastSeg = seg
	log.Printf("channel %d: t=%d s, %s, CN0 %.2f dB-Hz",
		t.channel, seg, gnss.Satellite{System: gnss.SystemGalileo, PRN: t.prn}, t.cn0DbHz)
}

// Close releases the dump file.
func (t *Tracker) Close() error {
	return t.dump.close()
}

// CarrierDopplerHz returns the current carrier NCO frequency.
func (t *Tracker) CarrierDopplerHz() float64 { return t.carrierDopplerHz }

// CodeFreqHz returns the current code NCO frequency.
func (t *Tracker) CodeFreqHz() float64 { return t.codeFreqHz }

// CN0DbHz returns the last C/N0 estimate.
func (t *Tracker) CN0DbHz() float64 { return t.cn0DbHz }

// LockTest returns the last carrier lock metric.
func (t *Tracker) LockTest() float64 { return t.lockTest }

// SampleCounter returns the count of consumed input samples.
func (t *Tracker) SampleCounter() uint64 { return t.sampleCounter }

func sanitize(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

func abs32(c complex128) float32 {
	return float32(math.Hypot(real(c), imag(c)))
}
