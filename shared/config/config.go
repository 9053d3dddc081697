package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rae-agent/internal/models"
	"rae-agent/shared/logging"
	"rae-agent/shared/retry"
)

// ErrUnknownDataSource is returned when the WellData API URL is not an absolute http(s) URL
var ErrUnknownDataSource = errors.New("unknown data source")

type Config struct {
	WellData   WellDataConfig   `yaml:"welldata"`
	RAE        RAEConfig        `yaml:"rae"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Email      EmailConfig      `yaml:"email"`
	AI         AIConfig         `yaml:"ai"`
	Logging    logging.Config   `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Schedule   string           `yaml:"schedule"`
}

type WellDataConfig struct {
	APIURL   string `yaml:"api_url"`
	AppID    string `yaml:"app_id" env:"WELLDATA_APP_ID"`
	Username string `yaml:"username" env:"WELLDATA_USERNAME"`
	Password string `yaml:"password" env:"WELLDATA_PASSWORD"`

	// RetryDelay is the wait before the single inline retry of a failed request
	RetryDelay time.Duration `yaml:"retry_delay"`
	// OuterAttempts and OuterDelay bound the retries around token and job listing calls
	OuterAttempts int           `yaml:"outer_attempts"`
	OuterDelay    time.Duration `yaml:"outer_delay"`
	Timeout       time.Duration `yaml:"timeout"`
	TokenLifetime time.Duration `yaml:"token_lifetime"`

	JobStatus string `yaml:"job_status"`
	Take      int    `yaml:"take"`
	MaxPages  int    `yaml:"max_pages"`
}

type RAEConfig struct {
	// Rigs are "{contractor} {rig}" substrings; takes precedence over the other filters
	Rigs        []string `yaml:"rigs"`
	Contractors []string `yaml:"contractors"`
	Operators   []string `yaml:"operators"`
	RigNumbers  []string `yaml:"rig_numbers"`

	OutputDir    string        `yaml:"output_dir"`
	ArchiveIndex string        `yaml:"archive_index"`
	Retention    time.Duration `yaml:"retention"`
}

type TelemetryConfig struct {
	// FromTime and ToTime pin the window to fixed RFC 3339 instants when set
	FromTime string `yaml:"from_time"`
	ToTime   string `yaml:"to_time"`
	// FromClock and ToClock are HH:MM:SS on the run date otherwise
	FromClock string `yaml:"from_clock"`
	ToClock   string `yaml:"to_clock"`
	// Interval is the time step in seconds
	Interval float64 `yaml:"interval"`
	Location string  `yaml:"location"`
}

type EmailConfig struct {
	SMTPServer     string   `yaml:"smtp_server"`
	SMTPPort       int      `yaml:"smtp_port"`
	Username       string   `yaml:"username" env:"EMAIL_USERNAME"`
	Password       string   `yaml:"password" env:"EMAIL_PASSWORD"`
	FromEmail      string   `yaml:"from_email"`
	Recipients     []string `yaml:"recipients"`
	ErrorRecipient string   `yaml:"error_recipient"`
}

type AIConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model        string `yaml:"model"`
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	return LoadFile(configFile)
}

// LoadFile reads path, applies env fallbacks and defaults, and validates the result.
func LoadFile(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	fallback := func(field *string, key string) {
		if *field == "" {
			*field = os.Getenv(key)
		}
	}
	fallback(&c.WellData.AppID, "WELLDATA_APP_ID")
	fallback(&c.WellData.Username, "WELLDATA_USERNAME")
	fallback(&c.WellData.Password, "WELLDATA_PASSWORD")
	fallback(&c.Email.Username, "EMAIL_USERNAME")
	fallback(&c.Email.Password, "EMAIL_PASSWORD")
	fallback(&c.AI.GeminiAPIKey, "GEMINI_API_KEY")
}

func (c *Config) applyDefaults() {
	wd := &c.WellData
	if wd.APIURL == "" {
		wd.APIURL = "https://data.welldata.net/api/v1"
	}
	if wd.RetryDelay == 0 {
		wd.RetryDelay = 20 * time.Second
	}
	if wd.OuterAttempts == 0 {
		wd.OuterAttempts = retry.Bounded().Attempts
	}
	if wd.OuterDelay == 0 {
		wd.OuterDelay = retry.Bounded().Delay
	}
	if wd.Timeout == 0 {
		wd.Timeout = 60 * time.Second
	}
	if wd.TokenLifetime == 0 {
		wd.TokenLifetime = 30 * time.Minute
	}
	if wd.JobStatus == "" {
		wd.JobStatus = models.JobStatusActive
	}
	if wd.Take == 0 {
		wd.Take = 1000
	}
	if wd.MaxPages == 0 {
		wd.MaxPages = 10
	}

	if c.RAE.OutputDir == "" {
		c.RAE.OutputDir = "reports"
	}
	if c.RAE.ArchiveIndex == "" {
		c.RAE.ArchiveIndex = "rae_archive.json"
	}
	if c.RAE.Retention == 0 {
		c.RAE.Retention = 30 * 24 * time.Hour
	}

	if c.Telemetry.FromClock == "" {
		c.Telemetry.FromClock = "06:05:17"
	}
	if c.Telemetry.ToClock == "" {
		c.Telemetry.ToClock = "06:06:17"
	}
	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = 60
	}
	if c.Telemetry.Location == "" {
		c.Telemetry.Location = "Local"
	}

	if c.Email.SMTPServer == "" {
		c.Email.SMTPServer = "smtp.office365.com"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Email.FromEmail == "" {
		c.Email.FromEmail = c.Email.Username
	}

	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.Logging.File == "" {
		c.Logging.File = "RAEAutomation.log"
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}
	if c.Schedule == "" {
		c.Schedule = "0 20 6 * * *" // Daily at 06:20
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.WellData.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnknownDataSource, c.WellData.APIURL)
	}
	if c.WellData.AppID == "" {
		return fmt.Errorf("WellData application ID is required (set WELLDATA_APP_ID or welldata.app_id)")
	}
	if c.WellData.Username == "" {
		return fmt.Errorf("WellData username is required (set WELLDATA_USERNAME or welldata.username)")
	}
	if c.WellData.Password == "" {
		return fmt.Errorf("WellData password is required (set WELLDATA_PASSWORD or welldata.password)")
	}
	if c.Email.Username == "" {
		return fmt.Errorf("Email username is required (set EMAIL_USERNAME or email.username)")
	}
	if c.Email.Password == "" {
		return fmt.Errorf("Email password is required (set EMAIL_PASSWORD or email.password)")
	}
	if len(c.Email.Recipients) == 0 {
		return fmt.Errorf("at least one email recipient is required (email.recipients)")
	}
	switch c.WellData.JobStatus {
	case models.JobStatusActive, models.JobStatusEnded, models.JobStatusAll:
	default:
		return fmt.Errorf("invalid welldata.job_status %q", c.WellData.JobStatus)
	}
	if (c.Telemetry.FromTime == "") != (c.Telemetry.ToTime == "") {
		return fmt.Errorf("telemetry.from_time and telemetry.to_time must be set together")
	}
	if _, err := time.LoadLocation(c.Telemetry.Location); err != nil {
		return fmt.Errorf("invalid telemetry.location %q: %w", c.Telemetry.Location, err)
	}
	return nil
}

// Window returns the telemetry window for a run started at now.
func (t TelemetryConfig) Window(now time.Time) (from, to time.Time, err error) {
	if t.FromTime != "" {
		if from, err = time.Parse(time.RFC3339, t.FromTime); err != nil {
			return from, to, fmt.Errorf("parse telemetry.from_time: %w", err)
		}
		if to, err = time.Parse(time.RFC3339, t.ToTime); err != nil {
			return from, to, fmt.Errorf("parse telemetry.to_time: %w", err)
		}
		return from, to, nil
	}

	loc, err := time.LoadLocation(t.Location)
	if err != nil {
		return from, to, fmt.Errorf("load location %q: %w", t.Location, err)
	}
	day := now.In(loc).Format(time.DateOnly)
	if from, err = time.ParseInLocation(time.DateTime, day+" "+t.FromClock, loc); err != nil {
		return from, to, fmt.Errorf("parse telemetry.from_clock: %w", err)
	}
	if to, err = time.ParseInLocation(time.DateTime, day+" "+t.ToClock, loc); err != nil {
		return from, to, fmt.Errorf("parse telemetry.to_clock: %w", err)
	}
	return from, to, nil
}
