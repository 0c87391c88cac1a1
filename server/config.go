package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/0xPolygon/polygon-gateway/gateway"
	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/router"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/hcl"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultMetricsInterval is the interval the queue gauges are refreshed at
	DefaultMetricsInterval = 8 * time.Second

	// DefaultBlockTime is the block time of the wall-clock block source
	DefaultBlockTime = 2 * time.Second

	// DefaultKeeperInterval is the interval the keeper drains the queue at
	DefaultKeeperInterval = 5 * time.Second

	// DefaultKeeperBatch is the number of queued messages processed per keeper round
	DefaultKeeperBatch = 32

	// DefaultWebhookTimeout bounds a single inbound handler request
	DefaultWebhookTimeout = 30 * time.Second

	stateFileName = "gateway.db"
)

var errNoKeeperAccount = errors.New("keeper is enabled but neither keeper account nor admins are configured")

// Config defines the gateway daemon configuration params
type Config struct {
	DataDir         string           `json:"data_dir" yaml:"data_dir" hcl:"data_dir"`
	LogLevel        string           `json:"log_level" yaml:"log_level" hcl:"log_level"`
	LogFilePath     string           `json:"log_to" yaml:"log_to" hcl:"log_to"`
	JSONLogFormat   bool             `json:"json_log_format" yaml:"json_log_format" hcl:"json_log_format"`
	Admins          []string         `json:"admins" yaml:"admins" hcl:"admins"`
	MaxRouterCount  int              `json:"max_router_count" yaml:"max_router_count" hcl:"max_router_count"`
	DisputeWindow   uint64           `json:"dispute_window" yaml:"dispute_window" hcl:"dispute_window"`
	EventBufferSize int              `json:"event_buffer_size" yaml:"event_buffer_size" hcl:"event_buffer_size"`
	Telemetry       *Telemetry       `json:"telemetry" yaml:"telemetry" hcl:"telemetry"`
	MetricsInterval time.Duration    `json:"metrics_interval" yaml:"metrics_interval" hcl:"metrics_interval"`
	BlockSource     *BlockSource     `json:"block_source" yaml:"block_source" hcl:"block_source"`
	Keeper          *Keeper          `json:"keeper" yaml:"keeper" hcl:"keeper"`
	InboundHandler  *InboundHandler  `json:"inbound_handler" yaml:"inbound_handler" hcl:"inbound_handler"`
	Routers         []*router.Config `json:"routers" yaml:"routers" hcl:"routers"`
}

// Telemetry holds the config details for metric services
type Telemetry struct {
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr" hcl:"prometheus_addr"`
}

// BlockSource selects where the current block of the home ledger comes from. When JSONRPCAddr
// is empty, blocks are derived from the wall clock and BlockTime.
type BlockSource struct {
	JSONRPCAddr string        `json:"jsonrpc_addr" yaml:"jsonrpc_addr" hcl:"jsonrpc_addr"`
	BlockTime   time.Duration `json:"block_time" yaml:"block_time" hcl:"block_time"`
}

// Keeper configures the loop processing queued messages
type Keeper struct {
	Enabled  bool          `json:"enabled" yaml:"enabled" hcl:"enabled"`
	Interval time.Duration `json:"interval" yaml:"interval" hcl:"interval"`
	Batch    int           `json:"batch" yaml:"batch" hcl:"batch"`
	// Account is the caller recorded for processing, the first admin when empty
	Account string `json:"account" yaml:"account" hcl:"account"`
}

// InboundHandler configures where executed messages are delivered. Without URL every
// message is accepted and only logged.
type InboundHandler struct {
	URL     string        `json:"url" yaml:"url" hcl:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" hcl:"timeout"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:         "./gateway-data",
		LogLevel:        "INFO",
		MaxRouterCount:  gateway.DefaultMaxRouterCount,
		DisputeWindow:   gateway.DefaultDisputeWindow,
		EventBufferSize: events.DefaultBufferSize,
		Telemetry:       &Telemetry{},
		MetricsInterval: DefaultMetricsInterval,
		BlockSource: &BlockSource{
			BlockTime: DefaultBlockTime,
		},
		Keeper: &Keeper{
			Enabled:  true,
			Interval: DefaultKeeperInterval,
			Batch:    DefaultKeeperBatch,
		},
		InboundHandler: &InboundHandler{
			Timeout: DefaultWebhookTimeout,
		},
	}
}

// ReadConfigFile reads the config file from the specified path, builds a Config object
// and returns it.
//
// Supported file types: .json, .hcl, .yaml, .yml
func ReadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var unmarshalFunc func([]byte, interface{}) error

	switch {
	case strings.HasSuffix(path, ".hcl"):
		unmarshalFunc = hcl.Unmarshal
	case strings.HasSuffix(path, ".json"):
		unmarshalFunc = json.Unmarshal
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		unmarshalFunc = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("suffix of %s is neither hcl, json, yaml nor yml", path)
	}

	config := DefaultConfig()

	if err := unmarshalFunc(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// GatewayConfig translates the daemon config into the gateway configuration
func (c *Config) GatewayConfig() (*gateway.Config, error) {
	admins := make([]types.Address, 0, len(c.Admins))

	for _, raw := range c.Admins {
		admin, err := types.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid admin %q: %w", raw, err)
		}

		admins = append(admins, admin)
	}

	return &gateway.Config{
		Admins:          admins,
		MaxRouterCount:  c.MaxRouterCount,
		DisputeWindow:   c.DisputeWindow,
		EventBufferSize: c.EventBufferSize,
	}, nil
}

// KeeperAccount returns the caller used by the keeper
func (c *Config) KeeperAccount() (types.Address, error) {
	raw := c.Keeper.Account
	if raw == "" {
		if len(c.Admins) == 0 {
			return types.ZeroAddress, errNoKeeperAccount
		}

		raw = c.Admins[0]
	}

	return types.ParseAddress(raw)
}

// Validate checks the config is consistent
func (c *Config) Validate() error {
	if err := c.validateStack(); err != nil {
		return err
	}

	if c.Keeper != nil && c.Keeper.Enabled {
		if c.Keeper.Interval <= 0 {
			return fmt.Errorf("keeper interval must be positive, got %s", c.Keeper.Interval)
		}

		if _, err := c.KeeperAccount(); err != nil {
			return err
		}
	}

	return nil
}

// validateStack checks the part of the config that the state and the gateway are built from
func (c *Config) validateStack() error {
	if c.DataDir == "" {
		return errors.New("data dir is not set")
	}

	if _, err := c.GatewayConfig(); err != nil {
		return err
	}

	if c.BlockSource != nil && c.BlockSource.JSONRPCAddr == "" && c.BlockSource.BlockTime <= 0 {
		return fmt.Errorf("block time must be positive, got %s", c.BlockSource.BlockTime)
	}

	seen := make(map[types.RouterID]struct{}, len(c.Routers))

	for _, r := range c.Routers {
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: %s", router.ErrDuplicateRouter, r.ID)
		}

		seen[r.ID] = struct{}{}
	}

	return nil
}
