package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/gnsslab/ubertrack/galileo"
	"github.com/gnsslab/ubertrack/tracking"
)

// Global debug flag
var DebugMode bool

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	DebugMode = *debug
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	config, err := LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Loaded configuration from %s: %d channels, fs %.0f Hz",
		*configFile, len(config.Channels), config.Tracking.FsIn)
	if DebugMode {
		log.Printf("Tracking config: %+v", config.Tracking)
	}

	codes, err := galileo.LoadCodeTable(config.CodesFile)
	if err != nil {
		log.Fatalf("Failed to load primary code table: %v", err)
	}
	log.Printf("Loaded primary codes for %d satellites from %s", len(codes.PRNs()), config.CodesFile)

	var metrics *TrackingMetrics
	if config.Prometheus.Enabled {
		metrics = NewTrackingMetrics()
	}

	var publisher *MQTTPublisher
	if config.MQTT.Enabled {
		publisher, err = NewMQTTPublisher(&config.MQTT)
		if err != nil {
			log.Printf("MQTT disabled: %v", err)
			publisher = nil
		}
	}

	hub := NewStatusHub()
	bus := tracking.NewControlBus(len(config.Channels) * 4)

	runners := make([]*ChannelRunner, 0, len(config.Channels))
	for i, chCfg := range config.Channels {
		runner, err := NewChannelRunner(i, chCfg, config.Tracking, codes, bus, metrics, hub)
		if err != nil {
			log.Fatalf("Failed to start channel %d (PRN %d): %v", i, chCfg.PRN, err)
		}
		runners = append(runners, runner)
	}

	go consumeControlBus(bus, runners, metrics, publisher)

	server := startHTTPServer(config, hub, runners)

	if publisher != nil {
		go publishStatusPeriodically(publisher, runners, config.MQTT.StatusIntervalSecs)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	streamCtx, stopStream := context.WithCancel(context.Background())
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		if err := runSampleStream(streamCtx, config, runners); err != nil {
			log.Printf("Sample stream: %v", err)
		}
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down", sig)
		stopStream()
		<-streamDone
	case <-streamDone:
		log.Printf("Sample stream exhausted, shutting down")
	}
	stopStream()

	for _, r := range runners {
		r.Wait()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	if publisher != nil {
		publisher.Close()
	}
	log.Printf("Shutdown complete")
}

// runSampleStream reads the IQ recording chunk by chunk and fans each chunk
// out to every channel runner. Returns when the stream is exhausted or the
// context is cancelled. It is the sole closer of the runner inputs.
func runSampleStream(ctx context.Context, config *Config, runners []*ChannelRunner) error {
	defer func() {
		for _, r := range runners {
			r.CloseInput()
		}
	}()

	source, err := OpenSampleSource(config.Source.Path)
	if err != nil {
		return err
	}
	defer source.Close()

	chunk := make([]complex64, config.Source.ChunkEpochs*config.Tracking.VectorLength)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, err := source.Read(chunk)
		if n > 0 {
			for _, r := range runners {
				r.Feed(chunk[:n])
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// consumeControlBus reacts to channel control messages: loss-of-lock events
// are counted and published
func consumeControlBus(bus *tracking.ControlBus, runners []*ChannelRunner,
	metrics *TrackingMetrics, publisher *MQTTPublisher) {
	for msg := range bus.Messages() {
		if msg.ID != tracking.MsgLossOfLock {
			log.Printf("Control bus: unhandled message %d for channel %d", msg.ID, msg.Channel)
			continue
		}
		if msg.Channel < 0 || msg.Channel >= len(runners) {
			continue
		}
		status := runners[msg.Channel].Status()
		log.Printf("Control bus: channel %d (%s) lost lock", msg.Channel, status.Satellite)
		if metrics != nil {
			metrics.ObserveLockLoss(msg.Channel, status.PRN)
		}
		if publisher != nil {
			publisher.PublishLockLoss(LockLossEvent{
				Timestamp: time.Now().Unix(),
				Channel:   msg.Channel,
				PRN:       status.PRN,
				Satellite: status.Satellite,
			})
		}
	}
}

// publishStatusPeriodically pushes every channel's snapshot to MQTT on a
// fixed interval
func publishStatusPeriodically(publisher *MQTTPublisher, runners []*ChannelRunner, intervalSecs int) {
	ticker := time.NewTicker(time.Duration(intervalSecs) * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		for _, r := range runners {
			publisher.PublishStatus(r.Status())
		}
	}
}

// startHTTPServer serves /metrics, /api/status and /ws
func startHTTPServer(config *Config, hub *StatusHub, runners []*ChannelRunner) *http.Server {
	mux := http.NewServeMux()

	if config.Prometheus.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if config.Server.EnableCORS {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		statuses := make([]ChannelStatus, 0, len(runners))
		for _, runner := range runners {
			statuses = append(statuses, runner.Status())
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statuses); err != nil {
			log.Printf("Status API: encode failed: %v", err)
		}
	})

	mux.HandleFunc("/ws", hub.HandleWebSocket)

	server := &http.Server{
		Addr:    config.Server.Listen,
		Handler: mux,
	}
	go func() {
		log.Printf("HTTP server listening on %s", config.Server.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()
	return server
}
