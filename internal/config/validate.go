package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"radiohub/internal/logging"
)

const minDenyThreshold = 3

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.System.NetworkName) == "" {
		add("system.networkName is required")
	}
	if c.System.NetworkBindPort < 1 || c.System.NetworkBindPort > 65535 {
		add("system.networkBindPort %d is out of range", c.System.NetworkBindPort)
	}
	if _, err := time.LoadLocation(c.System.Timezone); err != nil {
		add("system.timezone %q: %v", c.System.Timezone, err)
	}
	if _, ok := logging.ParseLevel(c.System.LogLevel); !ok {
		add("system.logLevel %q is not one of debug, info, warning, error", c.System.LogLevel)
	}
	if c.System.LogMaxSizeMB < 0 || c.System.LogMaxBackups < 0 {
		add("system.logMaxSizeMB and system.logMaxBackups must not be negative")
	}
	if c.Configuration.GrantDenyOccurrence < minDenyThreshold {
		add("configuration.grantDenyOccurrence must be at least %d, got %d", minDenyThreshold, c.Configuration.GrantDenyOccurrence)
	}
	if c.Configuration.ACLNotInhibited == c.Configuration.ACLInhibited {
		add("configuration.aclNotInhibited and aclInhibited must differ")
	}
	if c.Configuration.SubscriberBuffer < 1 {
		add("configuration.subscriberBuffer must be positive")
	}

	switch c.Configuration.ACLBackend {
	case BackendSheets:
		if strings.TrimSpace(c.Configuration.SheetID) == "" {
			add("configuration.sheetId is required for the sheets backend")
		}
		if problem := readableFile("paths.sheetsJson", c.Paths.SheetsJSON); problem != "" {
			add("%s", problem)
		}
	case BackendFile:
		if strings.TrimSpace(c.Paths.ACLFile) == "" {
			add("paths.aclFile is required for the file backend")
		}
	case BackendMemory:
	default:
		add("configuration.aclBackend %q is not one of sheets, file, memory", c.Configuration.ACLBackend)
	}

	if c.Configuration.HTTPSEnable {
		if problem := readableFile("paths.tlsCert", c.Paths.TLSCert); problem != "" {
			add("%s", problem)
		}
		if problem := readableFile("paths.tlsKey", c.Paths.TLSKey); problem != "" {
			add("%s", problem)
		}
	}

	if c.Configuration.DiscordWebHookEnable {
		parsed, err := url.Parse(c.Configuration.DiscordWebHookURL)
		if c.Configuration.DiscordWebHookURL == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
			add("configuration.discordWebHookUrl must be an absolute URL when webhooks are enabled")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func readableFile(key, path string) string {
	if strings.TrimSpace(path) == "" {
		return key + " is required"
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("%s %q is not readable: %v", key, path, err)
	}
	_ = file.Close()
	return ""
}
