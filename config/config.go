package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Chain     ChainConfig     `yaml:"chain"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
}

type ChainConfig struct {
	RPCURL          string        `yaml:"rpc_url"`
	ContractAddress string        `yaml:"contract_address"`
	ABIPath         string        `yaml:"abi_path"`
	PrivateKeyEnv   string        `yaml:"private_key_env"`
	PrivateKeyFile  string        `yaml:"private_key_file"`
	NonceSource     string        `yaml:"nonce_source"`
	NonceLock       string        `yaml:"nonce_lock"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	HealthInterval  time.Duration `yaml:"health_interval"`
}

type LifecycleConfig struct {
	DocumentCID         string `yaml:"document_cid"`
	DocumentScheme      string `yaml:"document_scheme"`
	GasLimit            uint64 `yaml:"gas_limit"`
	DepositGasPriceGwei int64  `yaml:"deposit_gas_price_gwei"`
	DepositValueEth     string `yaml:"deposit_value_eth"`
}

// DocumentURI is the content-addressed reference attached to every new order.
func (l LifecycleConfig) DocumentURI() string {
	return l.DocumentScheme + l.DocumentCID
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port"`
	SessionSecret  string  `yaml:"session_secret"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	EventsTopic         string        `yaml:"events_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	GatewayID           string        `yaml:"gateway_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// DefaultSessionSecret is the shipped web.session_secret. It must be replaced
// in any deployment reachable by others.
const DefaultSessionSecret = "change-me-in-production"

func Defaults() *Config {
	return &Config{
		Chain: ChainConfig{
			ABIPath:        "abi/AutomobileSupplyChain.json",
			PrivateKeyEnv:  "PRIVATE_KEY",
			NonceSource:    "pending",
			NonceLock:      "local",
			LockTTL:        30 * time.Second,
			DialTimeout:    10 * time.Second,
			HealthInterval: 30 * time.Second,
		},
		Lifecycle: LifecycleConfig{
			DocumentScheme:      "ipfs://",
			GasLimit:            300000,
			DepositGasPriceGwei: 5,
			DepositValueEth:     "0.5",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "supplygate.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "supplygate",
				User:     "supplygate",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			SessionSecret:  DefaultSessionSecret,
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Messaging: MessagingConfig{
			Backend: "kafka",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "supplygate",
			},
			EventsTopic:         "supplychain.transactions",
			OutboxDrainInterval: 5 * time.Second,
			GatewayID:           "gateway",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with the deployment environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("WEB3_PROVIDER_URL"); v != "" {
		c.Chain.RPCURL = v
	}
	if v := os.Getenv("CONTRACT_ADDRESS"); v != "" {
		c.Chain.ContractAddress = v
	}
	if v := os.Getenv("ISO_CID"); v != "" {
		c.Lifecycle.DocumentCID = v
	}
}

// Validate reports every setting the gateway cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("chain.rpc_url is required (or WEB3_PROVIDER_URL)"))
	}
	if c.Chain.ContractAddress == "" {
		errs = append(errs, errors.New("chain.contract_address is required (or CONTRACT_ADDRESS)"))
	}
	if c.Chain.ABIPath == "" {
		errs = append(errs, errors.New("chain.abi_path is required"))
	}
	if c.Lifecycle.DocumentCID == "" {
		errs = append(errs, errors.New("lifecycle.document_cid is required (or ISO_CID)"))
	}
	switch c.Chain.NonceSource {
	case "pending", "latest":
	default:
		errs = append(errs, fmt.Errorf("chain.nonce_source %q: want pending or latest", c.Chain.NonceSource))
	}
	switch c.Chain.NonceLock {
	case "local", "redis":
	default:
		errs = append(errs, fmt.Errorf("chain.nonce_lock %q: want local or redis", c.Chain.NonceLock))
	}
	if c.Lifecycle.GasLimit == 0 {
		errs = append(errs, errors.New("lifecycle.gas_limit must be positive"))
	}
	return errors.Join(errs...)
}

// PrivateKey reads the signing key from the configured secret file, else from
// the configured environment variable.
func (c *Config) PrivateKey() (string, error) {
	if c.Chain.PrivateKeyFile != "" {
		data, err := os.ReadFile(c.Chain.PrivateKeyFile)
		if err != nil {
			return "", fmt.Errorf("read private key file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	key := os.Getenv(c.Chain.PrivateKeyEnv)
	if key == "" {
		return "", fmt.Errorf("private key: environment variable %s is not set", c.Chain.PrivateKeyEnv)
	}
	return key, nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
