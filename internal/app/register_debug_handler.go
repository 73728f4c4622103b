// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/mag_passthrough/internal/imu"
	"github.com/relabs-tech/mag_passthrough/internal/magnetometer"
	"github.com/relabs-tech/mag_passthrough/internal/metrics"
	"github.com/relabs-tech/mag_passthrough/internal/regmap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// RegisterCmd is a register debug request. Device is "mpu9250" (default)
// or "ak8963"; AK8963 registers are reached through the relay.
type RegisterCmd struct {
	Action string `json:"action"` // get_map, read, read_all, write, init, export_config
	Device string `json:"device,omitempty"`
	Addr   string `json:"addr,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Response types
type RegisterResponse struct {
	Type        string            `json:"type"` // "register_data", "register_map", "status", "error", "export_config"
	Device      string            `json:"device,omitempty"`
	Address     string            `json:"addr,omitempty"`
	Value       string            `json:"value,omitempty"`
	Registers   map[string]string `json:"registers,omitempty"` // for bulk read
	Timestamp   string            `json:"timestamp,omitempty"`
	Message     string            `json:"message,omitempty"`
	Status      string            `json:"status,omitempty"`
	RegisterMap []RegisterInfo    `json:"register_map,omitempty"`
	Config      string            `json:"config,omitempty"`
	Filename    string            `json:"filename,omitempty"`
}

type RegisterInfo struct {
	Address     string         `json:"address"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Access      string         `json:"access"`
	Default     string         `json:"default,omitempty"`
	BitFields   []regmap.Field `json:"bit_fields,omitempty"`
}

// RegisterConfigFile is the JSON document produced by export_config.
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// RegisterDebug serves register access to a brought-up rig over a
// websocket. Writes are refused unless Writable is set, and then only to
// registers the map marks read-write. The AK8963 mode register is left to
// the driver so its state stays in step with the device.
type RegisterDebug struct {
	Rig      *Rig
	MagAddr  uint8
	Writable bool
}

func hex8(b byte) string { return fmt.Sprintf("0x%02X", b) }

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func (d *RegisterDebug) read(device string, reg byte) (byte, error) {
	if device == regmap.AK8963.Device {
		b, err := d.Rig.Master.RelayRead(d.MagAddr, reg, 1)
		if err != nil {
			return 0, err
		}
		return b[0], nil
	}
	return d.Rig.Master.ReadRegister(reg)
}

func (d *RegisterDebug) write(device string, reg, value byte) error {
	if device == regmap.AK8963.Device {
		return d.Rig.Master.RelayWrite(d.MagAddr, reg, value)
	}
	return d.Rig.Master.WriteRegister(reg, value)
}

func (d *RegisterDebug) readAll(m *regmap.Map) (map[string]string, error) {
	out := make(map[string]string)
	for _, reg := range m.Readable() {
		v, err := d.read(m.Device, reg)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", hex8(reg), err)
		}
		out[hex8(reg)] = hex8(v)
	}
	return out, nil
}

// handle runs one command and returns the response to send.
func (d *RegisterDebug) handle(cmd RegisterCmd) RegisterResponse {
	m, err := regmap.ForDevice(cmd.Device)
	if err != nil {
		return errorResponse(err.Error())
	}
	now := time.Now().Format(time.RFC3339)

	switch cmd.Action {
	case "get_map":
		return RegisterResponse{Type: "register_map", Device: m.Device, RegisterMap: registerInfos(m)}

	case "read":
		if cmd.Addr == "" {
			return errorResponse("missing addr field")
		}
		reg, err := parseByte(cmd.Addr)
		if err != nil {
			return errorResponse(fmt.Sprintf("invalid address format: %s", cmd.Addr))
		}
		v, err := d.read(m.Device, reg)
		if err != nil {
			return errorResponse(fmt.Sprintf("read error: %v", err))
		}
		return RegisterResponse{Type: "register_data", Device: m.Device, Address: hex8(reg), Value: hex8(v), Timestamp: now}

	case "read_all":
		regs, err := d.readAll(m)
		if err != nil {
			return errorResponse(fmt.Sprintf("read all error: %v", err))
		}
		return RegisterResponse{Type: "register_data", Device: m.Device, Registers: regs, Timestamp: now}

	case "write":
		if cmd.Addr == "" || cmd.Value == "" {
			return errorResponse("missing addr or value field")
		}
		reg, err := parseByte(cmd.Addr)
		if err != nil {
			return errorResponse(fmt.Sprintf("invalid address format: %s", cmd.Addr))
		}
		v, err := parseByte(cmd.Value)
		if err != nil {
			return errorResponse(fmt.Sprintf("invalid value format: %s", cmd.Value))
		}
		if !d.Writable {
			return errorResponse("register writes are disabled (REGISTER_DEBUG_WRITABLE=false)")
		}
		if !m.Writable(reg) {
			return errorResponse(fmt.Sprintf("register %s is not writable on %s", hex8(reg), m.Device))
		}
		if m.Device == regmap.AK8963.Device && reg == magnetometer.DefaultRegisters().CNTL1 {
			return errorResponse(fmt.Sprintf("register %s (CNTL1) is owned by the magnetometer driver", hex8(reg)))
		}
		if err := d.write(m.Device, reg, v); err != nil {
			return errorResponse(fmt.Sprintf("write error: %v", err))
		}
		log.Printf("register_debug: %s %s <- %s", m.Device, hex8(reg), hex8(v))
		return RegisterResponse{Type: "register_data", Device: m.Device, Address: hex8(reg), Value: hex8(v), Timestamp: now, Message: "write successful"}

	case "init":
		if err := d.Rig.Master.Initialize(); err != nil {
			return errorResponse(fmt.Sprintf("reinit error: %v", err))
		}
		return RegisterResponse{Type: "status", Device: regmap.Bridge.Device, Status: "initialized", Message: "I2C master re-enabled"}

	case "export_config":
		regs, err := d.readAll(m)
		if err != nil {
			return errorResponse(fmt.Sprintf("export error: %v", err))
		}
		doc, err := json.Marshal(RegisterConfigFile{Version: 1, Device: m.Device, Timestamp: now, Registers: regs})
		if err != nil {
			return errorResponse(fmt.Sprintf("export error: %v", err))
		}
		return RegisterResponse{
			Type:     "export_config",
			Device:   m.Device,
			Message:  "config exported",
			Config:   string(doc),
			Filename: fmt.Sprintf("%s_%s_registers.json", m.Device, time.Now().Format("20060102_150405")),
		}
	}
	return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
}

func registerInfos(m *regmap.Map) []RegisterInfo {
	regs := m.Registers()
	out := make([]RegisterInfo, len(regs))
	for i, r := range regs {
		out[i] = RegisterInfo{
			Address:     hex8(r.Addr),
			Name:        r.Name,
			Description: r.Description,
			Access:      string(r.Access),
			BitFields:   r.Fields,
		}
		if r.Access == regmap.ReadWrite {
			out[i].Default = hex8(r.Default)
		}
	}
	return out
}

func errorResponse(message string) RegisterResponse {
	return RegisterResponse{Type: "error", Message: message}
}

// NewRegisterDebugMux routes the register and calibration websockets, the
// live sample endpoint and Prometheus metrics.
func NewRegisterDebugMux(d *RegisterDebug, cal *Calibrator) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", d.HandleWS)
	mux.HandleFunc("/ws/calibration", cal.HandleCalibrationWS)
	mux.HandleFunc("/api/mag", d.HandleMagData)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// HandleWS handles the WebSocket connection for register debugging. The
// bridge register map is sent on connect.
func (d *RegisterDebug) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(d.handle(RegisterCmd{Action: "get_map"})); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var cmd RegisterCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(d.handle(cmd)); err != nil {
			log.Printf("register_debug: write error: %v", err)
			return
		}
	}
}

// HandleMagData polls one sample through the rig and serves it as JSON.
func (d *RegisterDebug) HandleMagData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s, err := d.Rig.Mag.PollSample(&d.Rig.Adjustment)
	if err != nil && !s.Stale {
		http.Error(w, fmt.Sprintf(`{"error": %q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, imu.FromSample(s, time.Now()))
}
