package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "./config.yaml"

type Config struct {
	API       APIConfig       `yaml:"api"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Payment   PaymentConfig   `yaml:"payment"`
	Journal   DatabaseConfig  `yaml:"journal"`
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	JWT       JWTConfig       `yaml:"jwt"`
	Logger    LoggerConfig    `yaml:"logger"`
}

type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	CookieFile string        `yaml:"cookie_file"`
	UserAgent  string        `yaml:"user_agent"`
}

type ScannerConfig struct {
	SampleInterval time.Duration `yaml:"sample_interval"`
	Cooldown       time.Duration `yaml:"cooldown"`
	StartTimeout   time.Duration `yaml:"start_timeout"`
	RestartDelay   time.Duration `yaml:"restart_delay"`
	FacingMode     string        `yaml:"facing_mode"`
	IdealWidth     int           `yaml:"ideal_width"`
	IdealHeight    int           `yaml:"ideal_height"`
	MinWidth       int           `yaml:"min_width"`
	MinHeight      int           `yaml:"min_height"`
	IdealFrameRate int           `yaml:"ideal_frame_rate"`
	MinFrameRate   int           `yaml:"min_frame_rate"`
}

type PaymentConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	Deadline          time.Duration `yaml:"deadline"`
	StatusTimeout     time.Duration `yaml:"status_timeout"`
	DisplayRate       float64       `yaml:"display_rate"`
	CommissionPercent int           `yaml:"commission_percent"`
}

type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // sqlite3 | postgres
	Path            string `yaml:"path"`
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	User            string `yaml:"user"`
	DBName          string `yaml:"name"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
}

type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	CheckOrigin     bool          `yaml:"check_origin"`
	PingPeriod      time.Duration `yaml:"ping_period"`
	SendBuffer      int           `yaml:"send_buffer"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "https://localhost:5000",
			Timeout:    15 * time.Second,
			MaxRetries: 2,
			RetryDelay: 500 * time.Millisecond,
			UserAgent:  "walletctl/1.0",
		},
		Scanner: ScannerConfig{
			SampleInterval: 300 * time.Millisecond,
			Cooldown:       time.Second,
			StartTimeout:   5 * time.Second,
			RestartDelay:   2 * time.Second,
			FacingMode:     "environment",
			IdealWidth:     1280,
			IdealHeight:    720,
			MinWidth:       640,
			MinHeight:      480,
			IdealFrameRate: 30,
			MinFrameRate:   15,
		},
		Payment: PaymentConfig{
			PollInterval:      time.Second,
			Deadline:          180 * time.Second,
			StatusTimeout:     5 * time.Second,
			DisplayRate:       11350,
			CommissionPercent: 10,
		},
		Journal: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "./qrpay-journal.db",
		},
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        "8787",
			Environment: "development",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      54 * time.Second,
			SendBuffer:      256,
		},
		JWT: JWTConfig{
			TTL: 12 * time.Hour,
		},
		Logger: LoggerConfig{
			Level: "info",
		},
	}
}

// Load reads an optional .env file and then the YAML config at path.
// ${VAR} references in the YAML are expanded from the environment.
// A missing config file yields the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = DefaultPath
	}

	config := Default()
	configData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, config.Validate()
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := Parse([]byte(os.ExpandEnv(string(configData))), config); err != nil {
		return nil, err
	}

	return config, config.Validate()
}

// Parse decodes YAML data on top of the values already present in config.
func Parse(data []byte, config *Config) error {
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Scanner.SampleInterval <= 0 {
		return errors.New("scanner.sample_interval must be positive")
	}
	if c.Scanner.Cooldown < 0 {
		return errors.New("scanner.cooldown must not be negative")
	}
	if c.Scanner.StartTimeout <= 0 {
		return errors.New("scanner.start_timeout must be positive")
	}
	if c.Payment.PollInterval <= 0 {
		return errors.New("payment.poll_interval must be positive")
	}
	if c.Payment.Deadline < c.Payment.PollInterval {
		return errors.New("payment.deadline must be at least one poll interval")
	}
	if c.Payment.DisplayRate <= 0 {
		return errors.New("payment.display_rate must be positive")
	}
	switch c.Journal.Driver {
	case "", "sqlite3", "postgres":
	default:
		return fmt.Errorf("journal.driver %q is not supported", c.Journal.Driver)
	}
	return nil
}
