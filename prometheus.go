package main

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TrackingMetrics holds all Prometheus metric collectors for the tracking
// channels. All vectors carry 'channel' and 'prn' labels.
type TrackingMetrics struct {
	cn0            *prometheus.GaugeVec // Last C/N0 estimate in dB-Hz
	carrierDoppler *prometheus.GaugeVec // Carrier NCO frequency in Hz
	codeFreq       *prometheus.GaugeVec // Code NCO frequency in chips/s
	lockTest       *prometheus.GaugeVec // Carrier lock metric in [-1, 1]

	epochsTotal     *prometheus.CounterVec // Tracking epochs processed
	lockLossesTotal *prometheus.CounterVec // Loss-of-lock events
}

// NewTrackingMetrics creates and registers all tracking metric collectors
func NewTrackingMetrics() *TrackingMetrics {
	labels := []string{"channel", "prn"}
	return &TrackingMetrics{
		cn0: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ubertrack_channel_cn0_db_hz",
			Help: "Carrier-to-noise density estimate in dB-Hz",
		}, labels),
		carrierDoppler: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ubertrack_channel_carrier_doppler_hz",
			Help: "Carrier NCO frequency in Hz",
		}, labels),
		codeFreq: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ubertrack_channel_code_freq_hz",
			Help: "Code NCO frequency in chips per second",
		}, labels),
		lockTest: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ubertrack_channel_lock_test",
			Help: "Narrowband carrier lock metric",
		}, labels),
		epochsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ubertrack_channel_epochs_total",
			Help: "Tracking epochs processed",
		}, labels),
		lockLossesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ubertrack_channel_lock_losses_total",
			Help: "Loss-of-lock events",
		}, labels),
	}
}

// ObserveEpoch updates the per-channel gauges from one epoch's status
func (m *TrackingMetrics) ObserveEpoch(s ChannelStatus) {
	ch := strconv.Itoa(s.Channel)
	prn := strconv.Itoa(s.PRN)
	m.cn0.WithLabelValues(ch, prn).Set(s.CN0DbHz)
	m.carrierDoppler.WithLabelValues(ch, prn).Set(s.CarrierDopplerHz)
	m.codeFreq.WithLabelValues(ch, prn).Set(s.CodeFreqHz)
	m.lockTest.WithLabelValues(ch, prn).Set(s.LockTest)
	m.epochsTotal.WithLabelValues(ch, prn).Inc()
}

// ObserveLockLoss counts one loss-of-lock event
func (m *TrackingMetrics) ObserveLockLoss(channel, prn int) {
	m.lockLossesTotal.WithLabelValues(strconv.Itoa(channel), strconv.Itoa(prn)).Inc()
}
