package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/proximity/internal/config"
	"github.com/banshee-data/proximity/internal/proximity"
	"github.com/banshee-data/proximity/internal/proximitydb"
	"github.com/banshee-data/proximity/internal/rplidar"
	"github.com/banshee-data/proximity/internal/serialport"
	"github.com/banshee-data/proximity/internal/timeutil"
)

var (
	portName   = flag.String("port", "/dev/ttyUSB0", "Serial port the sensor is attached to")
	baudRate   = flag.Int("baud", serialport.DefaultBaudRate, "Serial baud rate")
	listen     = flag.String("listen", ":8082", "HTTP listen address")
	dbFile     = flag.String("db", "proximity_data.db", "Path to the SQLite database file")
	configFile = flag.String("config", "", "Path to a JSON tuning config (defaults used when empty)")
	tick       = flag.Duration("tick", 0, "Sensor tick interval (overrides the config value when set)")
	record     = flag.Bool("record", true, "Record sector commits and estimates to the database")
	healthSecs = flag.Int("health-interval", 30, "Seconds between sensor health requests (0 disables)")
)

// proximityState is the snapshot shared between the sensor tick goroutine
// and the HTTP server. The tick goroutine replaces it wholesale after every
// update pass.
type proximityState struct {
	mu sync.Mutex

	sectors      []proximity.Sector
	front        proximity.AvoidanceEstimate
	back         proximity.AvoidanceEstimate
	status       rplidar.Status
	lastHealth   *rplidar.Health
	samplesAlive bool
}

func (st *proximityState) update(sectors []proximity.Sector, front, back proximity.AvoidanceEstimate, status rplidar.Status) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sectors = sectors
	st.front = front
	st.back = back
	st.status = status
	st.samplesAlive = status == rplidar.StatusGood
}

func (st *proximityState) setHealth(h rplidar.Health) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastHealth = &h
}

// snapshot returns a JSON-marshalable copy of the current state.
func (st *proximityState) snapshot() map[string]any {
	st.mu.Lock()
	defer st.mu.Unlock()

	sectors := make([]map[string]any, len(st.sectors))
	for i, s := range st.sectors {
		sectors[i] = map[string]any{
			"sector":     s.Index,
			"angle_deg":  s.AngleDeg,
			"distance_m": s.DistanceM,
			"valid":      s.Valid,
		}
	}

	out := map[string]any{
		"link_ok": st.samplesAlive,
		"sectors": sectors,
		"front": map[string]any{
			"clearance_cm":     st.front.ClearanceCm,
			"direction":        st.front.Direction.String(),
			"obstacle_range_m": st.front.ObstacleRangeM,
		},
		"back": map[string]any{
			"clearance_cm":     st.back.ClearanceCm,
			"direction":        st.back.Direction.String(),
			"obstacle_range_m": st.back.ObstacleRangeM,
		},
	}
	if st.lastHealth != nil {
		out["sensor_health"] = map[string]any{
			"status":     st.lastHealth.Status,
			"error_code": st.lastHealth.ErrorCode,
			"hw_error":   st.lastHealth.HardwareError(),
		}
	}
	return out
}

// statusCapture adapts the driver's status callback to a stored value the
// tick loop folds into the shared snapshot.
type statusCapture struct {
	status rplidar.Status
}

func (c *statusCapture) SetStatus(s rplidar.Status) { c.status = s }

// dbSectorSink records committed sectors; failures are logged and dropped so
// recording never stalls the sensor loop.
type dbSectorSink struct {
	pdb       *proximitydb.ProximityDB
	sessionID string
}

func (s *dbSectorSink) SectorCommitted(sector proximity.Sector) {
	if err := s.pdb.RecordSectorCommit(s.sessionID, sector); err != nil {
		log.Printf("Failed to record sector commit: %v", err)
	}
}

type healthRelay struct {
	state     *proximityState
	pdb       *proximitydb.ProximityDB
	sessionID string
}

func (h *healthRelay) SensorHealth(health rplidar.Health) {
	h.state.setHealth(health)
	if h.pdb != nil {
		if err := h.pdb.RecordHealthEvent(h.sessionID, health); err != nil {
			log.Printf("Failed to record health event: %v", err)
		}
	}
}

// runSensor drives the sensor at the configured tick interval until the
// context is cancelled. All driver and aggregation state is confined to
// this goroutine; only the snapshot and the database cross it.
func runSensor(ctx context.Context, tickInterval time.Duration, driver *rplidar.Driver,
	agg *proximity.Aggregator, front, back *proximity.EdgeTracker,
	status *statusCapture, state *proximityState,
	pdb *proximitydb.ProximityDB, sessionID string) {

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var healthTicker *time.Ticker
	var healthC <-chan time.Time
	if *healthSecs > 0 {
		healthTicker = time.NewTicker(time.Duration(*healthSecs) * time.Second)
		defer healthTicker.Stop()
		healthC = healthTicker.C
	}

	var lastFront, lastBack proximity.AvoidanceEstimate

	for {
		select {
		case <-ctx.Done():
			driver.Stop()
			log.Println("Sensor loop shutting down")
			return
		case <-healthC:
			driver.RequestHealth()
		case <-ticker.C:
			driver.Update()
			state.update(agg.Sectors(), front.Estimate(), back.Estimate(), status.status)

			if pdb != nil {
				if est := front.Estimate(); est != lastFront {
					lastFront = est
					if err := pdb.RecordAvoidance(sessionID, "front", est); err != nil {
						log.Printf("Failed to record front estimate: %v", err)
					}
				}
				if est := back.Estimate(); est != lastBack {
					lastBack = est
					if err := pdb.RecordAvoidance(sessionID, "back", est); err != nil {
						log.Printf("Failed to record back estimate: %v", err)
					}
				}
			}
		}
	}
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}

	// Load tuning, falling back to compiled-in defaults.
	cfg := config.EmptyTuningConfig()
	if *configFile != "" {
		loaded, err := config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		cfg = loaded
		log.Printf("Loaded tuning config from %s", *configFile)
	}

	port, err := serialport.Open(*portName, *baudRate)
	if err != nil {
		log.Fatalf("Failed to open serial port %s: %v", *portName, err)
	}
	defer port.Close()
	log.Printf("Opened %s at %d baud", *portName, *baudRate)

	// Initialize database and recording session.
	var pdb *proximitydb.ProximityDB
	var sessionID string
	if *record {
		pdb, err = proximitydb.NewProximityDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to proximity database: %v", err)
		}
		defer pdb.Close()

		sessionID, err = pdb.StartSession(*portName, "")
		if err != nil {
			log.Fatalf("Failed to start recording session: %v", err)
		}
		defer func() {
			if err := pdb.EndSession(sessionID); err != nil {
				log.Printf("Failed to end recording session: %v", err)
			}
		}()
		log.Printf("Recording to %s (session %s)", *dbFile, sessionID)
	} else {
		log.Println("Database recording disabled (use -record to enable)")
	}

	// Wire the sensor pipeline: driver -> sector aggregator + edge trackers.
	driver := rplidar.NewDriver(port, timeutil.RealClock{}, rplidar.Params{
		ResyncTimeout:   cfg.GetResyncTimeout(),
		ActivityTimeout: cfg.GetActivityTimeout(),
		MinDistanceM:    cfg.GetMinDistanceM(),
		MaxDistanceM:    cfg.GetMaxDistanceM(),
	})

	state := &proximityState{}
	status := &statusCapture{}
	driver.SetStatusSink(status)

	var sectorSink proximity.BoundarySink
	if pdb != nil {
		sectorSink = &dbSectorSink{pdb: pdb, sessionID: sessionID}
	}
	numSectors := cfg.GetNumSectors()
	agg := proximity.NewAggregator(numSectors, proximity.EvenSectors(numSectors), cfg.GetMinDistanceM(), sectorSink)

	edgeParams := proximity.EdgeParams{
		MinObstacleDistanceM: cfg.GetObstacleMinDistanceM(),
		NominalClearanceCm:   cfg.GetNominalClearanceCm(),
		ClearanceScale:       cfg.GetClearanceScale(),
		FarRangeM:            cfg.GetFarRangeM(),
	}
	front := proximity.NewFrontTracker(edgeParams)
	back := proximity.NewBackTracker(edgeParams)

	driver.AddConsumer(agg)
	driver.AddConsumer(front)
	driver.AddConsumer(back)
	driver.SetHealthSink(&healthRelay{state: state, pdb: pdb, sessionID: sessionID})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tickInterval := cfg.GetTickInterval()
	if *tick > 0 {
		tickInterval = *tick
	}

	// Sensor tick goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		runSensor(ctx, tickInterval, driver, agg, front, back, status, state, pdb, sessionID)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// Health check endpoint
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status": "ok", "service": "proximity", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
		})

		// Current obstacle picture
		mux.HandleFunc("/api/proximity", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(state.snapshot()); err != nil {
				log.Printf("Failed to encode proximity snapshot: %v", err)
			}
		})

		// Basic info endpoint
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html")

			recordingStatus := "disabled"
			if pdb != nil {
				recordingStatus = fmt.Sprintf("enabled (%s)", *dbFile)
			}

			fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head><title>Proximity Sensor</title></head>
<body>
	<h1>Proximity Sensor</h1>
	<p>Sensor on %s at %d baud</p>
	<p>HTTP server running on %s</p>
	<p>Recording: %s</p>
	<ul>
		<li><a href="/health">Health check</a></li>
		<li><a href="/api/proximity">Obstacle snapshot</a></li>
	</ul>
</body>
</html>`, *portName, *baudRate, *listen, recordingStatus)
		})

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		go func() {
			log.Printf("Starting HTTP server on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
