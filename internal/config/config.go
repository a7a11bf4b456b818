package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type SecurityConfig struct {
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
	EncryptionKey string `mapstructure:"encryption_key"` // seals bank tokens at rest
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// BankConfig selects and configures the bank feed provider.
type BankConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	AppToken  string `mapstructure:"app_token"`
	AppSecret string `mapstructure:"app_secret"`
	Mock      bool   `mapstructure:"mock"` // canned transactions instead of the live API
}

// SyncConfig holds the reconciliation knobs. The polling window width and
// grace period are deliberately configuration, not constants.
type SyncConfig struct {
	TickHours      int `mapstructure:"tick_hours"`      // driver interval, default daily
	PollLeadDays   int `mapstructure:"poll_lead_days"`  // window opens this many days before cycle end
	GraceDays      int `mapstructure:"grace_days"`      // alert delay past cycle end
	FetchPadDays   int `mapstructure:"fetch_pad_days"`  // fetch this many days before cycle start
	TimeoutSeconds int `mapstructure:"timeout_seconds"` // per external bank call
}

func (s SyncConfig) Tick() time.Duration     { return time.Duration(orDefault(s.TickHours, 24)) * time.Hour }
func (s SyncConfig) PollLead() time.Duration { return time.Duration(orDefault(s.PollLeadDays, 3)) * 24 * time.Hour }
func (s SyncConfig) Grace() time.Duration    { return time.Duration(orDefault(s.GraceDays, 1)) * 24 * time.Hour }
func (s SyncConfig) FetchPad() time.Duration { return time.Duration(orDefault(s.FetchPadDays, 2)) * 24 * time.Hour }
func (s SyncConfig) Timeout() time.Duration  { return time.Duration(orDefault(s.TimeoutSeconds, 30)) * time.Second }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled reports whether SMTP delivery is configured; otherwise alerts are
// only logged and recorded.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.From != ""
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Security SecurityConfig `mapstructure:"security"`
	Log      LogConfig      `mapstructure:"log"`
	Bank     BankConfig     `mapstructure:"bank"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Mail     MailConfig     `mapstructure:"mail"`
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from given file path (e.g. "config.yaml").
// If path is empty, it defaults to "config.yaml" in current working directory.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		// environment overrides, e.g. RCK_SERVER_PORT=9000
		v.SetEnvPrefix("RCK") // rent check
		v.AutomaticEnv()

		if err = v.ReadInConfig(); err != nil {
			err = fmt.Errorf("read config: %w", err)
			return
		}

		var c Config
		if err = v.Unmarshal(&c); err != nil {
			err = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		appConfig = &c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}
