package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"radiohub/internal/logging"
)

func TestParseFlagsShortAndLongForms(t *testing.T) {
	for _, args := range [][]string{
		{"-c", "/etc/radiohub.yml", "-v"},
		{"--config", "/etc/radiohub.yml", "--verbose"},
		{"--config=/etc/radiohub.yml", "-v"},
	} {
		flags, err := parseFlags(args, nil)
		if err != nil {
			t.Fatalf("%v: parse: %v", args, err)
		}
		if flags.ConfigPath != "/etc/radiohub.yml" || !flags.Verbose {
			t.Fatalf("%v: unexpected flags %#v", args, flags)
		}
	}
}

func TestParseFlagsRequiresConfig(t *testing.T) {
	_, err := parseFlags([]string{"-v"}, nil)
	if !errors.Is(err, errConfigRequired) {
		t.Fatalf("expected errConfigRequired, got %v", err)
	}
}

func TestParseFlagsRejectsExtraArguments(t *testing.T) {
	_, err := parseFlags([]string{"-c", "a.yml", "b.yml"}, nil)
	if err == nil || !strings.Contains(err.Error(), "b.yml") {
		t.Fatalf("expected unexpected argument error, got %v", err)
	}
}

func TestParseFlagsHelp(t *testing.T) {
	var out bytes.Buffer
	_, err := parseFlags([]string{"-h"}, &out)
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
	if !strings.Contains(out.String(), "--config") {
		t.Fatalf("expected usage output, got %q", out.String())
	}
}

func TestLogLevelOverrides(t *testing.T) {
	if level := (flagValues{Verbose: true}).logLevel(logging.LevelError); level != logging.LevelDebug {
		t.Fatalf("expected debug, got %s", level)
	}
	if level := (flagValues{Quiet: true}).logLevel(logging.LevelInfo); level != logging.LevelWarning {
		t.Fatalf("expected warning, got %s", level)
	}
	if level := (flagValues{}).logLevel(logging.LevelError); level != logging.LevelError {
		t.Fatalf("expected configured level, got %s", level)
	}
}

func TestRunFailsOnInvalidConfig(t *testing.T) {
	if code := run([]string{"-c", t.TempDir() + "/missing.yml"}); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if code := run(nil); code != 1 {
		t.Fatalf("expected exit code 1 without config, got %d", code)
	}
}

func TestParseFlagsVersion(t *testing.T) {
	var out bytes.Buffer
	_, err := parseFlags([]string{"--version"}, &out)
	if !errors.Is(err, errVersionShown) {
		t.Fatalf("expected errVersionShown, got %v", err)
	}
	if !strings.HasPrefix(out.String(), "radiohub ") {
		t.Fatalf("expected version banner, got %q", out.String())
	}
	if code := run([]string{"--version"}); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}
