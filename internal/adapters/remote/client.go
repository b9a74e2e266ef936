package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ghalamif/CalibraFlow/internal/adapters/observability"
	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

const DefaultBaseURL = "http://127.0.0.1:8000/api"

var (
	// ErrUnauthorized is returned for HTTP 401/403 responses.
	ErrUnauthorized = errors.New("remote: unauthorized")
	// ErrSessionExpired is returned before any request when the bearer token's exp has passed.
	ErrSessionExpired = errors.New("remote: session expired")
	ErrNotFound       = errors.New("remote: not found")
)

// Config points the client at the calibration platform API.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = ports.DefaultRemoteTimeout
	}
}

// Client is an HTTP+JSON client for the calibration platform REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	obs     ports.Observability
	now     func() time.Time
}

func NewClient(cfg Config, obs ports.Observability) (*Client, error) {
	cfg.ApplyDefaults()
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid base url %q", cfg.BaseURL)
	}
	if obs == nil {
		obs = observability.Nop{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		obs:     obs,
		now:     time.Now,
	}, nil
}

func (c *Client) ListSensors(ctx context.Context) ([]domain.Sensor, error) {
	var out []wireSensor
	if err := c.doJSON(ctx, http.MethodGet, "/sensors/", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	sensors := make([]domain.Sensor, 0, len(out))
	for _, s := range out {
		sensors = append(sensors, s.toDomain())
	}
	return sensors, nil
}

func (c *Client) SubmitReading(ctx context.Context, sensorID string, value float64) error {
	body := map[string]any{"sensor": idValue(sensorID), "raw_value": value}
	if err := c.doJSON(ctx, http.MethodPost, "/readings/", nil, body, nil); err != nil {
		return fmt.Errorf("submit reading for sensor %s: %w", sensorID, err)
	}
	return nil
}

func (c *Client) DetectAnomaly(ctx context.Context, sensorID string, value float64) (domain.Detection, error) {
	body := map[string]any{"sensor_id": idValue(sensorID), "reading_value": value}
	var out domain.Detection
	if err := c.doJSON(ctx, http.MethodPost, "/ml/anomaly/detect/", nil, body, &out); err != nil {
		return domain.Detection{}, fmt.Errorf("detect anomaly for sensor %s: %w", sensorID, err)
	}
	return out, nil
}

func (c *Client) GetHistory(ctx context.Context, sensorName string) ([]domain.Reading, error) {
	q := url.Values{"sensor_name": {sensorName}}
	var out []wireReading
	if err := c.doJSON(ctx, http.MethodGet, "/readings/history/", q, nil, &out); err != nil {
		return nil, fmt.Errorf("history for %q: %w", sensorName, err)
	}
	readings := make([]domain.Reading, 0, len(out))
	for _, r := range out {
		readings = append(readings, r.toDomain())
	}
	return readings, nil
}

func (c *Client) GetDriftForecast(ctx context.Context, sensorID string, horizon int) (domain.DriftForecast, error) {
	if horizon <= 0 {
		horizon = ports.DefaultForecastHorizon
	}
	q := url.Values{"sensor_id": {sensorID}, "future_points": {strconv.Itoa(horizon)}}
	var out wireForecast
	if err := c.doJSON(ctx, http.MethodGet, "/ml/drift/predict/", q, nil, &out); err != nil {
		return domain.DriftForecast{}, fmt.Errorf("drift forecast for sensor %s: %w", sensorID, err)
	}
	return domain.DriftForecast{
		SensorID:    sensorID,
		Predictions: out.Predictions,
		Model:       out.ModelUsed,
		Confidence:  out.Confidence,
	}, nil
}

func (c *Client) GetCalibrationSchedule(ctx context.Context, sensorID string) ([]domain.ScheduleEntry, error) {
	q := url.Values{"sensor_id": {sensorID}}
	var out wireSchedule
	if err := c.doJSON(ctx, http.MethodGet, "/ml/calibration-schedule/", q, nil, &out); err != nil {
		return nil, fmt.Errorf("calibration schedule for sensor %s: %w", sensorID, err)
	}
	entries := make([]domain.ScheduleEntry, 0, len(out.Schedule))
	for _, e := range out.Schedule {
		entries = append(entries, e.toDomain())
	}
	return entries, nil
}

func (c *Client) ListAnomalies(ctx context.Context) ([]domain.Anomaly, error) {
	var out []wireAnomaly
	if err := c.doJSON(ctx, http.MethodGet, "/anomalies/", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	anomalies := make([]domain.Anomaly, 0, len(out))
	for _, a := range out {
		anomalies = append(anomalies, a.toDomain())
	}
	return anomalies, nil
}

func (c *Client) ListCalibrations(ctx context.Context, sensorID string) ([]domain.CalibrationRecord, error) {
	var q url.Values
	if sensorID != "" {
		q = url.Values{"sensor_id": {sensorID}}
	}
	var out []wireCalibration
	if err := c.doJSON(ctx, http.MethodGet, "/calibration/history/", q, nil, &out); err != nil {
		return nil, fmt.Errorf("calibration history: %w", err)
	}
	records := make([]domain.CalibrationRecord, 0, len(out))
	for _, r := range out {
		records = append(records, r.toDomain())
	}
	return records, nil
}

// checkSession rejects tokens whose exp claim has already passed. Opaque
// (non-JWT) tokens are sent as-is.
func (c *Client) checkSession() error {
	if c.token == "" {
		return nil
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !c.now().Before(claims.ExpiresAt.Time) {
		return ErrSessionExpired
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if err := c.checkSession(); err != nil {
		return err
	}

	var reqBody io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.obs.ObserveLatency("calibra_remote_latency_seconds", time.Since(start).Seconds())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// idValue sends numeric ids as JSON numbers, which the platform expects for
// primary keys, and anything else as a string.
func idValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

var _ ports.Remote = (*Client)(nil)
