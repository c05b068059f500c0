package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      App      `yaml:"app"`
	Database Database `yaml:"database"`
	Allows   Allows   `yaml:"allows"`
	WhatsApp WhatsApp `yaml:"whatsapp"`
	Gateway  Gateway  `yaml:"gateway"`
	Media    Media    `yaml:"media"`
	Sla      Sla      `yaml:"sla"`
}

type App struct {
	Name string `yaml:"name"`
	Port string `yaml:"port"`
	Host string `yaml:"host"`
	// PublicURL is the externally reachable base URL, used when
	// registering webhook callbacks with the hosted gateway.
	PublicURL string `yaml:"public_url"`
}

type Database struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
	Name string `yaml:"name"`
}

type Allows struct {
	Methods []string `yaml:"methods"`
	Origins []string `yaml:"origins"`
	Headers []string `yaml:"headers"`
}

// WhatsApp holds the embedded session settings: where whatsmeow keeps
// per-instance credential stores and how reconnection behaves.
type WhatsApp struct {
	StoreDir          string `yaml:"store_dir"`
	ReconnectAttempts int    `yaml:"reconnect_attempts"`
	ReconnectDelaySec int    `yaml:"reconnect_delay_sec"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

// Gateway holds the externally-hosted provider settings.
type Gateway struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

// Media holds the local storage directory for uploads forwarded to the
// hosted gateway, which fetches media by URL.
type Media struct {
	Dir string `yaml:"dir"`
}

type Sla struct {
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
}

func (w WhatsApp) ReconnectDelay() time.Duration {
	return time.Duration(w.ReconnectDelaySec) * time.Second
}

func (w WhatsApp) RequestTimeout() time.Duration {
	return time.Duration(w.RequestTimeoutSec) * time.Second
}

func (g Gateway) Timeout() time.Duration {
	return time.Duration(g.TimeoutSec) * time.Second
}

func (s Sla) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalSec) * time.Second
}

func InitConfig() *Config {
	var configs Config
	file_name, _ := filepath.Abs("./config.yaml")
	yaml_file, _ := os.ReadFile(file_name)
	yaml.Unmarshal(yaml_file, &configs)

	// Override with environment variables if they exist (for Docker)
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		configs.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		configs.Database.Port = dbPort
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		configs.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		configs.Database.Pass = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		configs.Database.Name = dbName
	}

	// Override app configuration with environment variables
	if appHost := os.Getenv("APP_HOST"); appHost != "" {
		configs.App.Host = appHost
	}
	if appPort := os.Getenv("APP_PORT"); appPort != "" {
		configs.App.Port = appPort
	}
	if appName := os.Getenv("APP_NAME"); appName != "" {
		configs.App.Name = appName
	}
	if publicURL := os.Getenv("APP_PUBLIC_URL"); publicURL != "" {
		configs.App.PublicURL = publicURL
	}

	if storeDir := os.Getenv("WA_STORE_DIR"); storeDir != "" {
		configs.WhatsApp.StoreDir = storeDir
	}
	if gwURL := os.Getenv("GATEWAY_BASE_URL"); gwURL != "" {
		configs.Gateway.BaseURL = gwURL
	}
	if gwKey := os.Getenv("GATEWAY_API_KEY"); gwKey != "" {
		configs.Gateway.APIKey = gwKey
	}
	if gwSecret := os.Getenv("GATEWAY_WEBHOOK_SECRET"); gwSecret != "" {
		configs.Gateway.WebhookSecret = gwSecret
	}
	if mediaDir := os.Getenv("MEDIA_DIR"); mediaDir != "" {
		configs.Media.Dir = mediaDir
	}
	if sweep := os.Getenv("SLA_SWEEP_INTERVAL_SEC"); sweep != "" {
		if v, err := strconv.Atoi(sweep); err == nil {
			configs.Sla.SweepIntervalSec = v
		}
	}

	applyDefaults(&configs)

	return &configs
}

func applyDefaults(c *Config) {
	if c.App.PublicURL == "" {
		c.App.PublicURL = "http://localhost:" + c.App.Port
	}
	if c.WhatsApp.StoreDir == "" {
		c.WhatsApp.StoreDir = "./wa-store"
	}
	if c.WhatsApp.ReconnectAttempts == 0 {
		c.WhatsApp.ReconnectAttempts = 5
	}
	if c.WhatsApp.ReconnectDelaySec == 0 {
		c.WhatsApp.ReconnectDelaySec = 5
	}
	if c.WhatsApp.RequestTimeoutSec == 0 {
		c.WhatsApp.RequestTimeoutSec = 5
	}
	if c.Gateway.TimeoutSec == 0 {
		c.Gateway.TimeoutSec = 5
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "./media"
	}
	if c.Sla.SweepIntervalSec == 0 {
		c.Sla.SweepIntervalSec = 60
	}
}
