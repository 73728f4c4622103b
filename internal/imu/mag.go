package imu

import (
	"time"

	"github.com/relabs-tech/mag_passthrough/internal/magnetometer"
	"github.com/relabs-tech/mag_passthrough/internal/orientation"
)

// MagSample is one magnetometer reading as published on MQTT.
type MagSample struct {
	Mx int16 `json:"mx"` // raw counts
	My int16 `json:"my"`
	Mz int16 `json:"mz"`

	Xut float64 `json:"x_ut"` // sensitivity adjusted, microtesla
	Yut float64 `json:"y_ut"`
	Zut float64 `json:"z_ut"`

	Norm    float64 `json:"norm_ut"`
	Heading float64 `json:"heading_deg"`

	Stale    bool `json:"stale,omitempty"`    // data-ready never seen
	Overflow bool `json:"overflow,omitempty"` // HOFL
	Overrun  bool `json:"overrun,omitempty"`  // DOR
	Attempts int  `json:"attempts"`

	Time string `json:"time"`
}

// FromSample converts a driver sample taken at t.
func FromSample(s magnetometer.Sample, t time.Time) MagSample {
	x, y, z := s.MicroTesla()
	return MagSample{
		Mx:       s.RawX,
		My:       s.RawY,
		Mz:       s.RawZ,
		Xut:      x,
		Yut:      y,
		Zut:      z,
		Norm:     s.Norm(),
		Heading:  orientation.HeadingFromField(x, y),
		Stale:    s.Stale,
		Overflow: s.Overflow,
		Overrun:  s.Overrun,
		Attempts: s.Attempts,
		Time:     t.Format(time.RFC3339Nano),
	}
}

// MagStatus is the retained bring-up status of the magnetometer.
type MagStatus struct {
	Enabled      bool       `json:"enabled"`
	BridgeWhoAmI string     `json:"bridge_who_am_i,omitempty"`
	MagWhoAmI    string     `json:"mag_who_am_i,omitempty"`
	State        string     `json:"state"`
	Adjustment   [3]float64 `json:"adjustment"`
	Error        string     `json:"error,omitempty"`
	Time         string     `json:"time"`
}
