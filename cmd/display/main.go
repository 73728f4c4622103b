package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/mag_passthrough/internal/app"
	"github.com/relabs-tech/mag_passthrough/internal/config"
)

func main() {
	configPath := flag.String("config", "./mag_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting magnetometer display (MQTT → SSD1306)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
