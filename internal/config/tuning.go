package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the root configuration for tuning parameters.
// All fields are optional; fields omitted from the JSON file fall back to
// the defaults baked into the Get* accessors, so partial configs are safe.
type TuningConfig struct {
	// Sensor range params
	MinDistanceM *float64 `json:"min_distance_m,omitempty"`
	MaxDistanceM *float64 `json:"max_distance_m,omitempty"`

	// Driver timing params
	ResyncTimeout   *string `json:"resync_timeout,omitempty"`   // duration string like "5s"
	ActivityTimeout *string `json:"activity_timeout,omitempty"` // duration string like "200ms"
	TickInterval    *string `json:"tick_interval,omitempty"`    // duration string like "10ms"

	// Sector aggregation params
	NumSectors *int `json:"num_sectors,omitempty"`

	// Edge estimator params
	ObstacleMinDistanceM *float64 `json:"obstacle_min_distance_m,omitempty"`
	NominalClearanceCm   *float64 `json:"nominal_clearance_cm,omitempty"`
	ClearanceScale       *float64 `json:"clearance_scale,omitempty"`
	FarRangeM            *float64 `json:"far_range_m,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil, so
// every accessor reports its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MinDistanceM != nil && *c.MinDistanceM < 0 {
		return fmt.Errorf("min_distance_m must be non-negative, got %f", *c.MinDistanceM)
	}
	if c.MaxDistanceM != nil && *c.MaxDistanceM <= 0 {
		return fmt.Errorf("max_distance_m must be positive, got %f", *c.MaxDistanceM)
	}
	if c.MinDistanceM != nil && c.MaxDistanceM != nil && *c.MinDistanceM >= *c.MaxDistanceM {
		return fmt.Errorf("min_distance_m %f must be below max_distance_m %f", *c.MinDistanceM, *c.MaxDistanceM)
	}

	if c.NumSectors != nil && *c.NumSectors < 1 {
		return fmt.Errorf("num_sectors must be at least 1, got %d", *c.NumSectors)
	}

	if c.ObstacleMinDistanceM != nil && *c.ObstacleMinDistanceM < 0 {
		return fmt.Errorf("obstacle_min_distance_m must be non-negative, got %f", *c.ObstacleMinDistanceM)
	}

	for name, field := range map[string]*string{
		"resync_timeout":   c.ResyncTimeout,
		"activity_timeout": c.ActivityTimeout,
		"tick_interval":    c.TickInterval,
	} {
		if field != nil && *field != "" {
			if _, err := time.ParseDuration(*field); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *field, err)
			}
		}
	}

	return nil
}

func (c *TuningConfig) duration(field *string, fallback time.Duration) time.Duration {
	if field == nil || *field == "" {
		return fallback
	}
	d, err := time.ParseDuration(*field)
	if err != nil {
		return fallback
	}
	return d
}

// GetMinDistanceM returns the min_distance_m value or the default.
func (c *TuningConfig) GetMinDistanceM() float64 {
	if c.MinDistanceM == nil {
		return 0.20
	}
	return *c.MinDistanceM
}

// GetMaxDistanceM returns the max_distance_m value or the default.
func (c *TuningConfig) GetMaxDistanceM() float64 {
	if c.MaxDistanceM == nil {
		return 16.0
	}
	return *c.MaxDistanceM
}

// GetResyncTimeout parses and returns the ResyncTimeout as a time.Duration.
func (c *TuningConfig) GetResyncTimeout() time.Duration {
	return c.duration(c.ResyncTimeout, 5*time.Second)
}

// GetActivityTimeout parses and returns the ActivityTimeout as a time.Duration.
func (c *TuningConfig) GetActivityTimeout() time.Duration {
	return c.duration(c.ActivityTimeout, 200*time.Millisecond)
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return c.duration(c.TickInterval, 10*time.Millisecond)
}

// GetNumSectors returns the num_sectors value or the default.
func (c *TuningConfig) GetNumSectors() int {
	if c.NumSectors == nil {
		return 8
	}
	return *c.NumSectors
}

// GetObstacleMinDistanceM returns the obstacle_min_distance_m value or the default.
func (c *TuningConfig) GetObstacleMinDistanceM() float64 {
	if c.ObstacleMinDistanceM == nil {
		return 0.5
	}
	return *c.ObstacleMinDistanceM
}

// GetNominalClearanceCm returns the nominal_clearance_cm value or the default.
func (c *TuningConfig) GetNominalClearanceCm() float64 {
	if c.NominalClearanceCm == nil {
		return 500
	}
	return *c.NominalClearanceCm
}

// GetClearanceScale returns the clearance_scale value or the default.
func (c *TuningConfig) GetClearanceScale() float64 {
	if c.ClearanceScale == nil {
		return 100
	}
	return *c.ClearanceScale
}

// GetFarRangeM returns the far_range_m value or the default.
func (c *TuningConfig) GetFarRangeM() float64 {
	if c.FarRangeM == nil {
		return 133
	}
	return *c.FarRangeM
}
