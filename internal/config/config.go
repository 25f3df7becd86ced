// Package config loads the console configuration: a YAML file, then RADIOHUB_*
// environment overrides, then validation. Any validation problem is fatal at
// startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"radiohub/internal/acl"
	"radiohub/internal/logging"
	"radiohub/internal/notify"
)

const (
	BackendSheets = "sheets"
	BackendFile   = "file"
	BackendMemory = "memory"

	DefaultBindAddress      = "0.0.0.0"
	DefaultBindPort         = 3000
	DefaultTimezone         = "America/Chicago"
	DefaultSystemRID        = "999999999"
	DefaultDenyThreshold    = 3
	DefaultSubscriberBuffer = 256
)

var ErrConfigRead = errors.New("read config")

type Config struct {
	System        System   `yaml:"system"`
	Paths         Paths    `yaml:"paths"`
	Configuration Settings `yaml:"configuration"`
	Discord       Discord  `yaml:"discord"`
}

type System struct {
	NetworkName        string `yaml:"networkName" env:"RADIOHUB_NETWORK_NAME"`
	NetworkBindAddress string `yaml:"networkBindAddress" env:"RADIOHUB_BIND_ADDRESS"`
	NetworkBindPort    int    `yaml:"networkBindPort" env:"RADIOHUB_BIND_PORT"`
	Timezone           string `yaml:"timezone" env:"RADIOHUB_TIMEZONE"`
	LogLevel           string `yaml:"logLevel" env:"RADIOHUB_LOG_LEVEL"`
	SystemRID          string `yaml:"systemRid" env:"RADIOHUB_SYSTEM_RID"`
	LogMaxSizeMB       int    `yaml:"logMaxSizeMB" env:"RADIOHUB_LOG_MAX_SIZE_MB"`
	LogMaxBackups      int    `yaml:"logMaxBackups" env:"RADIOHUB_LOG_MAX_BACKUPS"`
}

type Paths struct {
	SheetsJSON string `yaml:"sheetsJson" env:"RADIOHUB_SHEETS_JSON"`
	ACLFile    string `yaml:"aclFile" env:"RADIOHUB_ACL_FILE"`
	TLSCert    string `yaml:"tlsCert" env:"RADIOHUB_TLS_CERT"`
	TLSKey     string `yaml:"tlsKey" env:"RADIOHUB_TLS_KEY"`
	// LogFile adds a rotated log file next to stdout when set.
	LogFile string `yaml:"logFile" env:"RADIOHUB_LOG_FILE"`
}

type Settings struct {
	GrantDenyOccurrence  int      `yaml:"grantDenyOccurrence" env:"RADIOHUB_DENY_THRESHOLD"`
	HTTPSEnable          bool     `yaml:"httpsEnable" env:"RADIOHUB_HTTPS_ENABLE"`
	ACLBackend           string   `yaml:"aclBackend" env:"RADIOHUB_ACL_BACKEND"`
	SheetID              string   `yaml:"sheetId" env:"RADIOHUB_SHEET_ID"`
	ACLRange             string   `yaml:"aclRange" env:"RADIOHUB_ACL_RANGE"`
	ACLNotInhibited      string   `yaml:"aclNotInhibited"`
	ACLInhibited         string   `yaml:"aclInhibited"`
	DiscordWebHookEnable bool     `yaml:"discordWebHookEnable" env:"RADIOHUB_DISCORD_ENABLE"`
	DiscordWebHookURL    string   `yaml:"discordWebHookUrl" env:"RADIOHUB_DISCORD_WEBHOOK_URL"`
	AllowedOrigins       []string `yaml:"allowedOrigins" env:"RADIOHUB_ALLOWED_ORIGINS" envSeparator:","`
	SubscriberBuffer     int      `yaml:"subscriberBuffer" env:"RADIOHUB_SUBSCRIBER_BUFFER"`
}

// Discord holds the per-event notification toggles.
type Discord struct {
	VoiceRequest       bool `yaml:"voiceRequest"`
	VoiceGrant         bool `yaml:"voiceGrant"`
	VoiceDeny          bool `yaml:"voiceDeny"`
	AffiliationRequest bool `yaml:"affiliationRequest"`
	AffiliationGrant   bool `yaml:"affiliationGrant"`
	RegRequest         bool `yaml:"regRequest"`
	RegGrant           bool `yaml:"regGrant"`
	RegDeny            bool `yaml:"regDeny"`
	RegRefuse          bool `yaml:"regRefuse"`
	Page               bool `yaml:"page"`
	Inhibit            bool `yaml:"inhibit"`
	EmergencyCall      bool `yaml:"emergencyCall"`
}

// Load reads path, applies environment overrides from the process environment
// and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnvironment(path, nil)
}

// LoadWithEnvironment is Load with an explicit environment; nil means the
// process environment.
func LoadWithEnvironment(path string, environment map[string]string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &ValidationError{Problems: []string{"config path is required (-c)"}}
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrConfigRead, path, err)
	}
	cfg, err := Parse(payload)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnvironment(environment); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document and fills defaults. It does not validate.
func Parse(payload []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(payload, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnvironment(environment map[string]string) error {
	options := env.Options{}
	if environment != nil {
		options.Environment = environment
	}
	if err := env.ParseWithOptions(c, options); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.System.NetworkBindAddress == "" {
		c.System.NetworkBindAddress = DefaultBindAddress
	}
	if c.System.NetworkBindPort == 0 {
		c.System.NetworkBindPort = DefaultBindPort
	}
	if c.System.Timezone == "" {
		c.System.Timezone = DefaultTimezone
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = string(logging.LevelInfo)
	}
	if c.System.SystemRID == "" {
		c.System.SystemRID = DefaultSystemRID
	}
	if c.System.LogMaxSizeMB == 0 {
		c.System.LogMaxSizeMB = logging.DefaultFileMaxSizeMB
	}
	if c.System.LogMaxBackups == 0 {
		c.System.LogMaxBackups = logging.DefaultFileMaxBackups
	}
	if c.Configuration.GrantDenyOccurrence == 0 {
		c.Configuration.GrantDenyOccurrence = DefaultDenyThreshold
	}
	if c.Configuration.ACLBackend == "" {
		c.Configuration.ACLBackend = BackendSheets
	}
	if c.Configuration.ACLRange == "" {
		c.Configuration.ACLRange = acl.DefaultSheetRange
	}
	polarity := acl.DefaultPolarity()
	if c.Configuration.ACLNotInhibited == "" {
		c.Configuration.ACLNotInhibited = polarity.NotInhibited
	}
	if c.Configuration.ACLInhibited == "" {
		c.Configuration.ACLInhibited = polarity.Inhibited
	}
	if c.Configuration.SubscriberBuffer == 0 {
		c.Configuration.SubscriberBuffer = DefaultSubscriberBuffer
	}
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.System.NetworkBindAddress, c.System.NetworkBindPort)
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.System.Timezone)
}

func (c *Config) Level() logging.Level {
	level, _ := logging.ParseLevel(c.System.LogLevel)
	return level
}

func (c *Config) Polarity() acl.Polarity {
	return acl.Polarity{
		NotInhibited: c.Configuration.ACLNotInhibited,
		Inhibited:    c.Configuration.ACLInhibited,
	}
}

// Toggles maps the discord section onto notification kinds.
func (d Discord) Toggles() map[notify.Kind]bool {
	return map[notify.Kind]bool{
		notify.KindVoiceRequest:       d.VoiceRequest,
		notify.KindVoiceGrant:         d.VoiceGrant,
		notify.KindVoiceDeny:          d.VoiceDeny,
		notify.KindAffiliationRequest: d.AffiliationRequest,
		notify.KindAffiliationGrant:   d.AffiliationGrant,
		notify.KindRegRequest:         d.RegRequest,
		notify.KindRegGrant:           d.RegGrant,
		notify.KindRegDeny:            d.RegDeny,
		notify.KindRegRefuse:          d.RegRefuse,
		notify.KindPage:               d.Page,
		notify.KindInhibit:            d.Inhibit,
		notify.KindEmergencyCall:      d.EmergencyCall,
	}
}
