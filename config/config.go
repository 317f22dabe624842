package config

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/hashanchor/receipt-bridge/entity"
)

type RPCConfig struct {
	Host    string   `yaml:"host" validate:"required,url"`
	Timeout Duration `yaml:"timeout" validate:"required"`
}

type ChainConfig struct {
	RPC                   *RPCConfig `yaml:"rpc" validate:"required"`
	ChainID               string     `yaml:"chain_id" validate:"required,numeric"`
	AnchorAddress         string     `yaml:"anchor_address" validate:"required,eth_addr"`
	SignerKey             string     `yaml:"signer_key" validate:"required,len=64,hexadecimal"`
	RequiredConfirmations uint       `yaml:"required_confirmations" validate:"required,min=1"`
	PollInterval          Duration   `yaml:"poll_interval" validate:"required"`
}

type RelayConfig struct {
	SourceChain     string   `yaml:"source_chain" validate:"required"`
	MaxAttempts     uint     `yaml:"max_attempts" validate:"required,min=1"`
	RetryBackoff    Duration `yaml:"retry_backoff" validate:"required"`
	MaxRetryBackoff Duration `yaml:"max_retry_backoff" validate:"required"`
	MaxPollDuration Duration `yaml:"max_poll_duration" validate:"required"`
}

type DBConfig struct {
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password" validate:"required"`
	Host     string `yaml:"host" validate:"required"`
	Port     uint16 `yaml:"port" validate:"required"`
	DB       string `yaml:"database" validate:"required"`
}

type PresenterConfig struct {
	Host string `yaml:"host" validate:"required"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" validate:"required"`
}

type Config struct {
	Chains    map[string]*ChainConfig `yaml:"chains" validate:"required,dive,required"`
	Relay     *RelayConfig            `yaml:"relay" validate:"required"`
	DBConfig  *DBConfig               `yaml:"postgres" validate:"required"`
	Presenter *PresenterConfig        `yaml:"presenter" validate:"required"`
	Auth      *AuthConfig             `yaml:"auth" validate:"required"`
	LogLevel  string                  `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
}

var validate = validator.New()

func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// Every configured chain must be one of the supported relay targets,
	// required confirmations and poll intervals are per-chain constants.
	for name := range cfg.Chains {
		if _, err := entity.ParseChain(name); err != nil {
			return fmt.Errorf("invalid chains config: %w", err)
		}
	}
	return nil
}

func (cfg *Config) GetChainConfig(chain entity.Chain) *ChainConfig {
	return cfg.Chains[string(chain)]
}

func readConfig(blob []byte) (*Config, error) {
	cfg := new(Config)
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadConfigWithEnv(blob []byte) (*Config, error) {
	return readConfig([]byte(os.ExpandEnv(string(blob))))
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file %q: %w", path, err)
	}
	return ReadConfigWithEnv(blob)
}
