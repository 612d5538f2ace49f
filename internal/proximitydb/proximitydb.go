// Package proximitydb persists sector commits, avoidance estimates and
// sensor health events to a local SQLite database for later analysis.
package proximitydb

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/proximity/internal/monitoring"
	"github.com/banshee-data/proximity/internal/proximity"
	"github.com/banshee-data/proximity/internal/rplidar"
)

type ProximityDB struct {
	*sql.DB
}

// schema.sql contains the SQL statements for creating the proximity
// database schema: session records plus the per-sector and per-cone
// output streams.
//
//go:embed schema.sql
var schemaSQL string

func NewProximityDB(path string) (*ProximityDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, err
	}

	monitoring.Logf("initialized proximity database schema")

	return &ProximityDB{db}, nil
}

// StartSession creates a new recording session and returns its ID.
func (pdb *ProximityDB) StartSession(portName, notes string) (string, error) {
	query := `
		INSERT INTO proximity_sessions (id, port_name, session_notes)
		VALUES (?, ?, ?)
	`

	sessionID := uuid.NewString()
	if _, err := pdb.Exec(query, sessionID, portName, notes); err != nil {
		return "", fmt.Errorf("failed to start proximity session: %v", err)
	}

	return sessionID, nil
}

// EndSession stamps the end time on a recording session.
func (pdb *ProximityDB) EndSession(sessionID string) error {
	query := `
		UPDATE proximity_sessions
		SET end_timestamp = UNIXEPOCH('subsec')
		WHERE id = ?
	`

	if _, err := pdb.Exec(query, sessionID); err != nil {
		return fmt.Errorf("failed to end proximity session: %v", err)
	}

	return nil
}

// RecordSectorCommit stores one committed sector.
func (pdb *ProximityDB) RecordSectorCommit(sessionID string, s proximity.Sector) error {
	query := `
		INSERT INTO sector_commits (session_id, sector, angle_deg, distance_m, valid)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := pdb.Exec(query, sessionID, s.Index, s.AngleDeg, s.DistanceM, s.Valid); err != nil {
		return fmt.Errorf("failed to insert sector commit: %v", err)
	}

	return nil
}

// RecordAvoidance stores one avoidance estimate for the named cone.
func (pdb *ProximityDB) RecordAvoidance(sessionID, cone string, est proximity.AvoidanceEstimate) error {
	query := `
		INSERT INTO avoidance_estimates (session_id, cone, clearance_cm, direction, obstacle_range_m)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := pdb.Exec(query, sessionID, cone, est.ClearanceCm, int(est.Direction), est.ObstacleRangeM); err != nil {
		return fmt.Errorf("failed to insert avoidance estimate: %v", err)
	}

	return nil
}

// RecordHealthEvent stores one decoded sensor health payload.
func (pdb *ProximityDB) RecordHealthEvent(sessionID string, h rplidar.Health) error {
	query := `
		INSERT INTO health_events (session_id, status, error_code)
		VALUES (?, ?, ?)
	`

	if _, err := pdb.Exec(query, sessionID, h.Status, h.ErrorCode); err != nil {
		return fmt.Errorf("failed to insert health event: %v", err)
	}

	return nil
}
