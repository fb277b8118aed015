package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/tradecore-lab/tradecore/pkg/errors"
)

type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeLive       Mode = "live"
)

// RiskConfig holds the admission-control limits consumed by the order
// manager. All limits are required and must be positive; an invalid limit is
// fatal at startup.
type RiskConfig struct {
	MaxOrderValue      float64 `yaml:"max_order_value" json:"max_order_value" jsonschema:"title=Max Order Value,description=Maximum notional value of a single order" validate:"required,gt=0"`
	MaxOrdersPerMinute int     `yaml:"max_orders_per_minute" json:"max_orders_per_minute" jsonschema:"title=Max Orders Per Minute,description=Sliding-window order submission limit" validate:"required,gt=0"`
	// AllowNegativeCash permits buys that drive cash below zero (margin).
	// Default false: such orders are rejected at validation time.
	AllowNegativeCash bool `yaml:"allow_negative_cash" json:"allow_negative_cash" jsonschema:"title=Allow Negative Cash,description=Permit cash to go negative (margin)"`
}

// GatewayConfig selects and configures the market connection.
type GatewayConfig struct {
	Mode Mode `yaml:"mode" json:"mode" jsonschema:"title=Mode,description=simulation or live" validate:"required,oneof=simulation live"`

	// Simulation mode settings.
	DataPath string `yaml:"data_path" json:"data_path" jsonschema:"title=Data Path,description=CSV file with historical bars" validate:"required_if=Mode simulation"`
	// FillChunk splits simulated fills into chunks of at most this quantity.
	// Zero means every order fills in one piece.
	FillChunk float64 `yaml:"fill_chunk" json:"fill_chunk" jsonschema:"title=Fill Chunk,description=Max quantity per simulated partial fill (0 = full fill)" validate:"gte=0"`

	// Live mode settings. Credentials come from the environment
	// (BINANCE_API_KEY / BINANCE_SECRET_KEY), never from the config file.
	Symbols  []string `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,description=Symbols to subscribe to in live mode"`
	Interval string   `yaml:"interval" json:"interval" jsonschema:"title=Interval,description=Candlestick interval for the live stream"`
	Testnet  bool     `yaml:"testnet" json:"testnet" jsonschema:"title=Testnet,description=Use the exchange testnet"`
}

// StrategyConfig names the strategy and carries its parameters.
type StrategyConfig struct {
	Name   string             `yaml:"name" json:"name" jsonschema:"title=Name,description=Registered strategy name" validate:"required"`
	Params map[string]float64 `yaml:"params" json:"params" jsonschema:"title=Params,description=Numeric strategy parameters"`
}

// Config is the full run configuration.
type Config struct {
	InitialCapital float64                    `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting cash in account currency" validate:"required,gt=0"`
	Risk           RiskConfig                 `yaml:"risk" json:"risk" validate:"required"`
	Gateway        GatewayConfig              `yaml:"gateway" json:"gateway" validate:"required"`
	Strategy       StrategyConfig             `yaml:"strategy" json:"strategy" validate:"required"`
	ResultsFolder  string                     `yaml:"results_folder" json:"results_folder" jsonschema:"title=Results Folder,description=Directory for run artifacts"`
	StartTime      optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the replayed period"`
	EndTime        optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the replayed period"`
}

// UnmarshalYAML implements custom unmarshaling so optional times round-trip
// through plain yaml timestamps.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain struct {
		InitialCapital float64        `yaml:"initial_capital"`
		Risk           RiskConfig     `yaml:"risk"`
		Gateway        GatewayConfig  `yaml:"gateway"`
		Strategy       StrategyConfig `yaml:"strategy"`
		ResultsFolder  string         `yaml:"results_folder"`
		StartTime      *time.Time     `yaml:"start_time"`
		EndTime        *time.Time     `yaml:"end_time"`
	}

	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}

	c.InitialCapital = p.InitialCapital
	c.Risk = p.Risk
	c.Gateway = p.Gateway
	c.Strategy = p.Strategy
	c.ResultsFolder = p.ResultsFolder

	if p.StartTime != nil {
		c.StartTime = optional.Some(*p.StartTime)
	}

	if p.EndTime != nil {
		c.EndTime = optional.Some(*p.EndTime)
	}

	return nil
}

// Load reads and validates a config file. Any validation failure is fatal:
// the run never starts with invalid limits.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config", err)
	}

	return Parse(content)
}

// Parse parses and validates raw yaml config content.
func Parse(content []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration contract.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}

// GenerateSchemaJSON returns the JSON schema describing the config file.
func (c *Config) GenerateSchemaJSON() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(c)
	schema.Title = "tradecore-config"
	schema.Description = "Configuration schema for a tradecore run"

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal schema", err)
	}

	return string(schemaBytes), nil
}
