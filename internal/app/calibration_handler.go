// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/mag_passthrough/internal/magnetometer"
)

// CalibrationResult is written to disk when a hard-iron run completes.
type CalibrationResult struct {
	Version    int                                `json:"version"`
	Timestamp  time.Time                          `json:"timestamp"`
	Adjustment magnetometer.SensitivityAdjustment `json:"sensitivity_adjustment"`
	HardIron   magnetometer.HardIronResult        `json:"hard_iron"`
	Rejected   int                                `json:"rejected_samples"`
}

// WebSocket message types
type WSMessage struct {
	Action string `json:"action"` // start, cancel
}

type WSResponse struct {
	Type     string      `json:"type"` // phase, progress, stats, complete, error
	Phase    string      `json:"phase,omitempty"`
	Progress float64     `json:"progress,omitempty"`
	Stats    interface{} `json:"stats,omitempty"`
	Results  interface{} `json:"results,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// Calibrator runs a hard-iron calibration while the user rotates the board:
// Samples readings, Interval apart, folded into a min/max fit.
type Calibrator struct {
	Rig      *Rig
	Samples  int
	Interval time.Duration
	Lead     time.Duration // time given to start moving
	Dir      string        // output directory, "" for the working directory
	Clock    clock.Clock
}

// CalibrationSession holds the state of an active calibration
type CalibrationSession struct {
	Conn *websocket.Conn
	cal  *Calibrator
}

// HandleCalibrationWS handles the WebSocket connection for calibration
func (c *Calibrator) HandleCalibrationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &CalibrationSession{Conn: conn, cal: c}

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("calibration: websocket read error: %v", err)
			return
		}

		switch msg.Action {
		case "start":
			if err := session.run(); err != nil {
				session.send(WSResponse{Type: "error", Message: err.Error()})
			}
		case "cancel":
			log.Printf("calibration: cancelled by user")
			return
		default:
			session.send(WSResponse{Type: "error", Message: fmt.Sprintf("unknown action: %s", msg.Action)})
		}
	}
}

func (s *CalibrationSession) send(resp WSResponse) {
	if err := s.Conn.WriteJSON(resp); err != nil {
		log.Printf("calibration: write error: %v", err)
	}
}

func (s *CalibrationSession) run() error {
	c := s.cal
	if !c.Rig.Mag.Enabled() {
		return fmt.Errorf("magnetometer disabled")
	}
	clk := c.Clock
	if clk == nil {
		clk = clock.New()
	}

	s.send(WSResponse{Type: "phase", Phase: "mag"})
	s.send(WSResponse{Type: "progress", Progress: 0})
	clk.Sleep(c.Lead)

	var fit magnetometer.HardIron
	rejected := 0
	for i := 0; i < c.Samples; i++ {
		sample, err := c.Rig.Mag.PollSample(&c.Rig.Adjustment)
		if err != nil && !sample.Stale {
			return err
		}
		if !fit.Add(sample) {
			rejected++
		}
		s.send(WSResponse{Type: "progress", Progress: float64(i+1) * 100 / float64(c.Samples)})
		if i < c.Samples-1 {
			clk.Sleep(c.Interval)
		}
	}

	hi, err := fit.Result()
	if err != nil {
		return err
	}
	s.send(WSResponse{Type: "stats", Stats: hi})

	result := CalibrationResult{
		Version:    1,
		Timestamp:  clk.Now(),
		Adjustment: c.Rig.Adjustment,
		HardIron:   hi,
		Rejected:   rejected,
	}
	filename, err := c.save(result)
	if err != nil {
		return err
	}
	s.send(WSResponse{Type: "complete", Results: map[string]interface{}{"filename": filename, "hard_iron": hi}})
	return nil
}

func (c *Calibrator) save(result CalibrationResult) (string, error) {
	dir := c.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = cwd
	}
	filename := fmt.Sprintf("mag_%d_calibration.json", result.Timestamp.Unix())

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal calibration results: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write calibration file: %w", err)
	}
	log.Printf("calibration: saved results to %s", path)
	return filename, nil
}
