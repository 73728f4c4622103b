// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/relabs-tech/mag_passthrough/internal/app"
	"github.com/relabs-tech/mag_passthrough/internal/config"
)

func main() {
	configPath := flag.String("config", "./mag_config.txt", "path to configuration file")
	port := flag.Int("port", 8081, "HTTP port")
	flag.Parse()

	log.Println("starting MPU-9250/AK8963 register debug tool (standalone)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	dev, closer, err := app.OpenBus(cfg)
	if err != nil {
		log.Fatalf("failed to open bus: %v", err)
	}
	defer closer.Close()

	rig, err := app.BringUp(dev, cfg, nil)
	if err != nil {
		log.Fatalf("bring-up failed: %v", err)
	}
	log.Printf("bridge=%s mag=%s state=%s", rig.Status.BridgeWhoAmI, rig.Status.MagWhoAmI, rig.Status.State)
	if cfg.RegisterDebugWritable {
		log.Println("Warning: register writes enabled")
	}

	dbg := &app.RegisterDebug{Rig: rig, MagAddr: cfg.MagAddr, Writable: cfg.RegisterDebugWritable}
	cal := &app.Calibrator{Rig: rig, Samples: 200, Interval: 100 * time.Millisecond, Lead: 2 * time.Second}

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Register debug tool listening on %s (websocket at /ws, calibration at /ws/calibration)", addr)
	if err := http.ListenAndServe(addr, app.NewRegisterDebugMux(dbg, cal)); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
