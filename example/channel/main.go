package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/CalibraFlow"
)

func main() {
	flow, err := calibraflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := calibraflow.NewChannelSink("fanout", 32)
	defer closeBatches()

	go fanoutWorker("archive", batches)

	if err := flow.Run(ctx, calibraflow.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, batches <-chan []calibraflow.Reading) {
	for batch := range batches {
		fmt.Printf("[%s] forwarding %d readings at %s\n", name, len(batch), time.Now().Format(time.RFC3339))
	}
}
