package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/fauxswitch/internal/infrastructure/influxdb"
	"github.com/nerrad567/fauxswitch/internal/infrastructure/mqtt"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Switches      SwitchMetrics  `json:"switches"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	InfluxDB      *InfluxMetrics   `json:"influxdb,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SwitchMetrics summarises the emulated switches.
type SwitchMetrics struct {
	Total            int  `json:"total"`
	On               int  `json:"on"`
	DiscoveryEnabled bool `json:"discovery_enabled"`
	PendingAutoOff   int  `json:"pending_auto_off"`
}

// MQTTMetrics reports the broker connection.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
	mqtt.Stats
}

// InfluxMetrics reports the InfluxDB writer.
type InfluxMetrics struct {
	Connected bool `json:"connected"`
	influxdb.Stats
}

// DatabaseMetrics reports the event store. Error is set when the schema
// version could not be read.
type DatabaseMetrics struct {
	SchemaVersion string `json:"schema_version"`
	Error         string `json:"error,omitempty"`
}

// handleMetrics returns process and switch metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	statuses := s.switches.Statuses()
	on := 0
	for _, st := range statuses {
		if st.State.On {
			on++
		}
	}

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Switches: SwitchMetrics{
			Total:            len(statuses),
			On:               on,
			DiscoveryEnabled: s.switches.DiscoveryEnabled(),
		},
	}

	if s.pending != nil {
		metrics.Switches.PendingAutoOff = s.pending()
	}
	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected(), Stats: s.mqtt.Stats()}
	}
	if s.influx != nil {
		metrics.InfluxDB = &InfluxMetrics{Connected: s.influx.IsConnected(), Stats: s.influx.Stats()}
	}
	if s.database != nil {
		metrics.Database = &DatabaseMetrics{}
		version, err := s.database.SchemaVersion(r.Context())
		if err != nil {
			s.logger.Warn("reading schema version", "error", err)
			metrics.Database.Error = err.Error()
		}
		metrics.Database.SchemaVersion = version
	}

	writeJSON(w, http.StatusOK, metrics)
}
