package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ghalamif/CalibraFlow"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	// .env is optional; CALIBRA_* variables override the YAML config.
	_ = godotenv.Load()

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "snapshot":
		err = snapshotCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("calibra-edge %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to edge configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := calibraflow.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := calibraflow.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good ✅ (remote=%s archive=%t)\n", *cfgPath, cfg.Remote.BaseURL, cfg.Archive.Enabled())
	return nil
}

func snapshotCommand(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/api/v1/snapshot", "Snapshot endpoint of a running edge")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(*url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var envelope struct {
		Data calibraflow.Snapshot `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	snap := envelope.Data
	sensors := append([]calibraflow.Sensor(nil), snap.Sensors...)
	sort.Slice(sensors, func(i, j int) bool { return sensors[i].ID < sensors[j].ID })

	fmt.Printf("version=%d taken_at=%s\n", snap.Version, snap.TakenAt.Format(time.RFC3339))
	for _, s := range sensors {
		fmt.Printf("%-6s %-20s %10.2f %-6s drift=%6.2f%% status=%s history=%d\n",
			s.ID, s.Name, s.Value, s.Unit, s.Drift, s.Status, len(snap.History[s.ID]))
	}
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"calibra_sync_cycles_total":       0,
		"calibra_sensors_tracked":         0,
		"calibra_remote_failures_total":   0,
		"calibra_readings_archived_total": 0,
		"calibra_archive_queue_length":    0,
		"calibra_journal_size_bytes":      0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] cycles=%.0f sensors=%.0f remote_failures=%.0f archived=%.0f queue=%.0f journal_bytes=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["calibra_sync_cycles_total"],
		targets["calibra_sensors_tracked"],
		targets["calibra_remote_failures_total"],
		targets["calibra_readings_archived_total"],
		targets["calibra_archive_queue_length"],
		targets["calibra_journal_size_bytes"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`CalibraFlow CLI

Usage:
  calibra-edge <command> [flags]

Commands:
  run        Start the sync engine, schedule planner and query API
  validate   Load and validate a config file without starting the runtime
  snapshot   Print the sensor snapshot of a running edge
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  calibra-edge run -config ./data/config.yaml
  calibra-edge validate -config ./data/config.yaml
  calibra-edge snapshot -url http://localhost:9100/api/v1/snapshot
  calibra-edge stats -url http://localhost:9100/metrics -interval 1s
`)
}
