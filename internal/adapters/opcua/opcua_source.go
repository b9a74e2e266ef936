package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint        string        `yaml:"endpoint"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode"`
	SecurityPolicy  string        `yaml:"security_policy"`
	ApplicationName string        `yaml:"application_name"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	Nodes           []NodeConfig  `yaml:"nodes"`
}

// NodeConfig maps a platform sensor onto the node carrying its live value.
type NodeConfig struct {
	NodeID   string `yaml:"node_id"`
	SensorID string `yaml:"sensor_id"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "CalibraFlow Edge"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	seen := make(map[string]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.NodeID == "" || n.SensorID == "" {
			return fmt.Errorf("node %q: node_id and sensor_id are required", n.NodeID)
		}
		if _, dup := seen[n.SensorID]; dup {
			return fmt.Errorf("sensor %q mapped twice", n.SensorID)
		}
		seen[n.SensorID] = struct{}{}
	}
	return nil
}

// nodeReader is the subset of *opcua.Client the source needs.
type nodeReader interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
}

// Source reads mapped sensors from an OPC UA server and hands everything
// else, including failed reads, to the fallback source.
type Source struct {
	cfg      Config
	fallback ports.ValueSource
	obs      ports.Observability
	nodes    map[string]*ua.NodeID

	mu     sync.Mutex
	client *opcua.Client
	reader nodeReader
}

func NewSource(cfg Config, fallback ports.ValueSource, obs ports.Observability) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fallback == nil {
		return nil, errors.New("opcua: fallback source is required")
	}
	nodes := make(map[string]*ua.NodeID, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		id, err := ua.ParseNodeID(n.NodeID)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", n.NodeID, err)
		}
		nodes[n.SensorID] = id
	}
	return &Source{cfg: cfg, fallback: fallback, obs: obs, nodes: nodes}, nil
}

// Connect opens the session. Until it succeeds every sensor is served by the fallback.
func (s *Source) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader != nil {
		return nil
	}

	client, err := opcua.NewClient(s.cfg.Endpoint, s.buildClientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	s.client = client
	s.reader = client
	return nil
}

func (s *Source) Next(ctx context.Context, sensor domain.Sensor, baseline float64) (float64, error) {
	nodeID, mapped := s.nodes[sensor.ID]
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if !mapped || reader == nil {
		return s.fallback.Next(ctx, sensor, baseline)
	}

	v, err := s.read(ctx, reader, nodeID)
	if err != nil {
		if s.obs != nil {
			s.obs.LogError("opcua_read_failed", err,
				ports.Field{Key: "sensor_id", Value: sensor.ID},
				ports.Field{Key: "node_id", Value: nodeID.String()},
			)
		}
		return s.fallback.Next(ctx, sensor, baseline)
	}
	return v, nil
}

func (s *Source) read(ctx context.Context, reader nodeReader, nodeID *ua.NodeID) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	resp, err := reader.Read(ctx, &ua.ReadRequest{
		NodesToRead:        []*ua.ReadValueID{{NodeID: nodeID, AttributeID: ua.AttributeIDValue}},
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	})
	if err != nil {
		return 0, err
	}
	if resp == nil || len(resp.Results) == 0 {
		return 0, errors.New("empty read response")
	}
	res := resp.Results[0]
	if res.Status != ua.StatusOK {
		return 0, fmt.Errorf("read status %s", res.Status)
	}
	fv, ok := variantToFloat(res.Value)
	if !ok {
		return 0, fmt.Errorf("unsupported value type %T", res.Value.Value())
	}
	return fv, nil
}

func (s *Source) Name() string { return "opcua" }

func (s *Source) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.reader = nil
	s.mu.Unlock()

	var err error
	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if e := s.fallback.Close(); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

func (s *Source) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(s.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(s.cfg.SecurityPolicy)),
		opcua.ApplicationName(s.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if s.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(s.cfg.Username, s.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.ValueSource = (*Source)(nil)
