package app

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/mag_passthrough/internal/config"
	"github.com/relabs-tech/mag_passthrough/internal/magnetometer"
)

// printSamples polls count samples, interval apart, and prints each to w.
func printSamples(w io.Writer, rig *Rig, count int, interval time.Duration, clk clock.Clock) error {
	fmt.Fprintf(w, "Sensitivity adjustment: X=%.4f Y=%.4f Z=%.4f\n",
		rig.Adjustment.X, rig.Adjustment.Y, rig.Adjustment.Z)
	for i := 0; i < count; i++ {
		if i > 0 {
			clk.Sleep(interval)
		}
		s, err := rig.Mag.PollSample(&rig.Adjustment)
		if err != nil && !errors.Is(err, magnetometer.ErrStaleData) {
			return err
		}
		note := ""
		if s.Stale {
			note = " (data-ready not seen)"
		}
		x, y, z := s.MicroTesla()
		fmt.Fprintf(w, "Magnetometer (raw with factory sensitivity): %.2f %.2f %.2f | %.2f %.2f %.2f uT%s\n",
			s.X, s.Y, s.Z, x, y, z, note)
	}
	return nil
}

// RunMagOnce brings up the magnetometer, prints count samples and exits.
func RunMagOnce(w io.Writer, count int, interval time.Duration) error {
	cfg := config.Get()

	dev, closer, err := OpenBus(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	clk := clock.New()
	rig, err := BringUp(dev, cfg, clk)
	if err != nil {
		return err
	}
	log.Printf("mag: bridge=%s mag=%s state=%s", rig.Status.BridgeWhoAmI, rig.Status.MagWhoAmI, rig.Status.State)

	return printSamples(w, rig, count, interval, clk)
}
