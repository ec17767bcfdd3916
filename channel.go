package main

import (
	"log"
	"sync"

	"github.com/gnsslab/ubertrack/galileo"
	"github.com/gnsslab/ubertrack/gnss"
	"github.com/gnsslab/ubertrack/tracking"
)

// ChannelStatus is the per-channel state snapshot published to the status
// websocket, the REST API and MQTT
type ChannelStatus struct {
	Channel          int     `json:"channel"`
	Satellite        string  `json:"satellite"`
	PRN              int     `json:"prn"`
	State            string  `json:"state"`
	CN0DbHz          float64 `json:"cn0_db_hz"`
	CarrierDopplerHz float64 `json:"carrier_doppler_hz"`
	CodeFreqHz       float64 `json:"code_freq_hz"`
	LockTest         float64 `json:"lock_test"`
	TimestampSecs    float64 `json:"timestamp_secs"`
	SampleCounter    uint64  `json:"sample_counter"`
}

// ChannelRunner drives one tracking channel on its own goroutine. It buffers
// incoming sample chunks until the tracker's input contract is met, then
// steps the loop and publishes the resulting records.
type ChannelRunner struct {
	index   int
	prn     int
	tracker *tracking.Tracker
	metrics *TrackingMetrics
	hub     *StatusHub

	need int // minimum buffered samples before a step may run

	in   chan []complex64
	done chan struct{}

	mu     sync.RWMutex
	status ChannelStatus
}

// NewChannelRunner builds the tracker for one satellite, applies the
// configured acquisition handoff and arms the loop
func NewChannelRunner(index int, chCfg ChannelConfig, trkCfg tracking.Config,
	provider galileo.CodeProvider, bus *tracking.ControlBus,
	metrics *TrackingMetrics, hub *StatusHub) (*ChannelRunner, error) {

	tracker, err := tracking.New(trkCfg, provider, bus)
	if err != nil {
		return nil, err
	}
	tracker.SetChannel(index)
	tracker.SetGnssSynchro(&gnss.Synchro{
		System:                gnss.SystemGalileo,
		PRN:                   chCfg.PRN,
		Signal:                "1B",
		AcqDelaySamples:       chCfg.CodePhaseSamples,
		AcqDopplerHz:          chCfg.DopplerHz,
		AcqSamplestampSamples: chCfg.SampleStamp,
	})
	if err := tracker.StartTracking(); err != nil {
		tracker.Close()
		return nil, err
	}

	c := &ChannelRunner{
		index:   index,
		prn:     chCfg.PRN,
		tracker: tracker,
		metrics: metrics,
		hub:     hub,
		need:    2 * trkCfg.VectorLength,
		in:      make(chan []complex64, 4),
		done:    make(chan struct{}),
	}
	c.status = ChannelStatus{
		Channel:   index,
		Satellite: gnss.Satellite{System: gnss.SystemGalileo, PRN: chCfg.PRN}.String(),
		PRN:       chCfg.PRN,
		State:     "pull_in",
	}
	go c.run()
	return c, nil
}

// Feed hands one chunk of input samples to the channel. The chunk is copied,
// so the caller may reuse its buffer. Blocks when the channel falls behind.
func (c *ChannelRunner) Feed(samples []complex64) {
	chunk := make([]complex64, len(samples))
	copy(chunk, samples)
	c.in <- chunk
}

// CloseInput signals end of the sample stream; the runner drains what it has
// buffered and stops
func (c *ChannelRunner) CloseInput() {
	close(c.in)
}

// Wait blocks until the runner has drained and shut down
func (c *ChannelRunner) Wait() {
	<-c.done
}

// Status returns the latest channel snapshot
func (c *ChannelRunner) Status() ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *ChannelRunner) run() {
	defer close(c.done)
	// Keep draining so a failed channel never stalls the shared sample fan-out.
	defer func() {
		for range c.in {
		}
	}()
	defer func() {
		if err := c.tracker.Close(); err != nil {
			log.Printf("channel %d: close: %v", c.index, err)
		}
	}()

	var buf []complex64
	for chunk := range c.in {
		buf = append(buf, chunk...)
		for len(buf) >= c.need {
			consumed, out, err := c.tracker.Step(buf)
			if err != nil {
				log.Printf("channel %d: step: %v", c.index, err)
				return
			}
			buf = buf[:copy(buf, buf[consumed:])]
			c.publish(&out)
		}
	}
}

func (c *ChannelRunner) publish(out *gnss.Synchro) {
	state := "idle"
	if c.tracker.Tracking() {
		state = "running"
	}
	status := ChannelStatus{
		Channel:          c.index,
		Satellite:        gnss.Satellite{System: gnss.SystemGalileo, PRN: c.prn}.String(),
		PRN:              c.prn,
		State:            state,
		CN0DbHz:          c.tracker.CN0DbHz(),
		CarrierDopplerHz: c.tracker.CarrierDopplerHz(),
		CodeFreqHz:       c.tracker.CodeFreqHz(),
		LockTest:         c.tracker.LockTest(),
		TimestampSecs:    out.TrackingTimestampSecs,
		SampleCounter:    c.tracker.SampleCounter(),
	}

	c.mu.Lock()
	c.status = status
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ObserveEpoch(status)
	}
	if c.hub != nil {
		c.hub.Broadcast(status)
	}
}
