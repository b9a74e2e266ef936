package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/CalibraFlow/pkg/calibraflow"
)

func main() {
	flow, err := calibraflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []calibraflow.Reading) error {
		for _, r := range batch {
			drift := 0.0
			if r.Drift != nil {
				drift = *r.Drift
			}
			fmt.Printf("%s sensor=%s value=%.2f%s drift=%.2f%%\n",
				r.Timestamp.Format(time.RFC3339Nano),
				r.SensorID,
				r.Value,
				r.Unit,
				drift,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, calibraflow.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
