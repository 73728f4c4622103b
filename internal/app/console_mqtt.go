package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/mag_passthrough/internal/config"
	"github.com/relabs-tech/mag_passthrough/internal/imu"
	"github.com/relabs-tech/mag_passthrough/internal/orientation"
)

func formatMagLine(m imu.MagSample) string {
	flags := ""
	if m.Stale {
		flags += " STALE"
	}
	if m.Overflow {
		flags += " HOFL"
	}
	if m.Overrun {
		flags += " DOR"
	}
	return fmt.Sprintf(
		"[MAG ] mx=%6d my=%6d mz=%6d  x=%8.2fuT y=%8.2fuT z=%8.2fuT  |B|=%7.2fuT  hdg=%5.1f° %-2s%s",
		m.Mx, m.My, m.Mz, m.Xut, m.Yut, m.Zut, m.Norm, m.Heading, orientation.Cardinal(m.Heading), flags,
	)
}

func formatStatusLine(st imu.MagStatus) string {
	if st.Error != "" {
		return fmt.Sprintf("[STAT] bring-up failed: %s", st.Error)
	}
	if !st.Enabled {
		return "[STAT] magnetometer disabled"
	}
	return fmt.Sprintf("[STAT] bridge=%s mag=%s state=%s asa=(%.4f, %.4f, %.4f)",
		st.BridgeWhoAmI, st.MagWhoAmI, st.State, st.Adjustment[0], st.Adjustment[1], st.Adjustment[2])
}

func subscribeJSON[T any](client mqtt.Client, topic string, handle func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("%s unmarshal error: %v", topic, err)
			return
		}
		handle(v)
	})
	token.Wait()
	return token.Error()
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeJSON(client, cfg.TopicMagStatus, func(st imu.MagStatus) {
		fmt.Println(formatStatusLine(st))
	}); err != nil {
		return err
	}
	log.Printf("console: subscribed to %s", cfg.TopicMagStatus)

	if err := subscribeJSON(client, cfg.TopicMag, func(m imu.MagSample) {
		fmt.Println(formatMagLine(m))
	}); err != nil {
		return err
	}
	log.Printf("console: subscribed to %s", cfg.TopicMag)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
