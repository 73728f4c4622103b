package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/mag_passthrough/internal/config"
	"github.com/relabs-tech/mag_passthrough/internal/imu"
	"github.com/relabs-tech/mag_passthrough/internal/magnetometer"
)

// Publisher is the slice of an MQTT client the producer needs.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

type mqttPublisher struct {
	client mqtt.Client
}

func (p mqttPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// magState is the latest sample and status, shared with the HTTP handlers.
type magState struct {
	mu         sync.RWMutex
	sample     imu.MagSample
	haveSample bool
	status     imu.MagStatus
}

func (s *magState) setSample(m imu.MagSample) {
	s.mu.Lock()
	s.sample = m
	s.haveSample = true
	s.mu.Unlock()
}

func (s *magState) setStatus(st imu.MagStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *magState) latest() (imu.MagSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sample, s.haveSample
}

func (s *magState) currentStatus() imu.MagStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// sampler polls one sample per tick and publishes it.
type sampler struct {
	mag   magnetometer.Driver
	adj   magnetometer.SensitivityAdjustment
	pub   Publisher
	topic string
	state *magState
}

// tick polls and publishes one sample. A stale sample is still published;
// ErrStaleData from a strict driver is logged and the sample kept.
func (s *sampler) tick(t time.Time) (imu.MagSample, error) {
	raw, err := s.mag.PollSample(&s.adj)
	stale := errors.Is(err, magnetometer.ErrStaleData)
	if err != nil && !stale {
		return imu.MagSample{}, err
	}
	if stale {
		log.Printf("mag: data-ready not seen after %d attempts", raw.Attempts)
	}

	m := imu.FromSample(raw, t)
	s.state.setSample(m)

	payload, err := json.Marshal(m)
	if err != nil {
		return m, fmt.Errorf("mag marshal: %w", err)
	}
	if err := s.pub.Publish(s.topic, false, payload); err != nil {
		return m, fmt.Errorf("MQTT publish (%s): %w", s.topic, err)
	}
	return m, nil
}

func publishStatus(pub Publisher, topic string, st imu.MagStatus) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("status marshal: %w", err)
	}
	return pub.Publish(topic, true, payload)
}

// RunMagProducer brings up the magnetometer and publishes samples to MQTT
// until interrupted. Latest data and metrics are served over HTTP.
func RunMagProducer() error {
	log.Println("starting magnetometer producer (AK8963 via MPU-9250 → MQTT)")

	cfg := config.Get()

	dev, closer, err := OpenBus(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	log.Printf("bus: opened %s", dev)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)
	pub := mqttPublisher{client: client}

	state := &magState{}

	rig, err := BringUp(dev, cfg, nil)
	if err != nil {
		st := imu.MagStatus{Enabled: cfg.MagEnabled, Error: err.Error(), Time: time.Now().Format(time.RFC3339)}
		if perr := publishStatus(pub, cfg.TopicMagStatus, st); perr != nil {
			log.Printf("MQTT publish error (status): %v", perr)
		}
		return fmt.Errorf("bring-up: %w", err)
	}
	status := rig.StatusAt(time.Now())
	state.setStatus(status)
	if err := publishStatus(pub, cfg.TopicMagStatus, status); err != nil {
		log.Printf("MQTT publish error (status): %v", err)
	}

	srv, addr, err := startWebServer(fmt.Sprintf(":%d", cfg.WebServerPort), newWebMux(state))
	if err != nil {
		return err
	}
	defer stopWebServer(srv)
	log.Printf("web: serving /api/mag and /metrics on %s", addr)

	s := &sampler{mag: rig.Mag, adj: rig.Adjustment, pub: pub, topic: cfg.TopicMag, state: state}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.SampleInterval())
	defer ticker.Stop()
	log.Println("starting publish loop")

	for {
		select {
		case <-sigCh:
			log.Println("mag producer: shutting down")
			return nil
		case t := <-ticker.C:
			m, err := s.tick(t)
			if err != nil {
				log.Printf("mag: %v", err)
				continue
			}
			log.Printf("%s mag raw=(%d,%d,%d) uT=(%.2f,%.2f,%.2f) |B|=%.2f hdg=%.1f stale=%t",
				m.Time, m.Mx, m.My, m.Mz, m.Xut, m.Yut, m.Zut, m.Norm, m.Heading, m.Stale)
		}
	}
}
