// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command mag_once brings the magnetometer up through the MPU-9250 bridge,
// prints a few adjusted samples and exits.
//
// Run:
//
//	go run ./cmd/mag_once -n 5
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/relabs-tech/mag_passthrough/internal/app"
	"github.com/relabs-tech/mag_passthrough/internal/config"
)

func main() {
	configPath := flag.String("config", "./mag_config.txt", "path to configuration file")
	count := flag.Int("n", 1, "number of samples to print")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between samples")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunMagOnce(os.Stdout, *count, *interval); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
