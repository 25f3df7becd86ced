package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"radiohub/internal/logging"
	"radiohub/internal/version"
)

var (
	errConfigRequired = errors.New("a configuration file is required (-c path)")
	errVersionShown   = errors.New("version shown")
)

type flagValues struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
	Help       bool
	Version    bool
}

func parseFlags(args []string, output io.Writer) (flagValues, error) {
	if output == nil {
		output = io.Discard
	}
	flagSet := pflag.NewFlagSet("radiohub", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var flags flagValues
	flagSet.StringVarP(&flags.ConfigPath, "config", "c", "", "path to the YAML configuration file")
	flagSet.BoolVarP(&flags.Verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVarP(&flags.Quiet, "quiet", "q", false, "log warnings and errors only")
	flagSet.BoolVarP(&flags.Help, "help", "h", false, "show help")
	flagSet.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(output, flagSet)
			return flags, pflag.ErrHelp
		}
		return flags, err
	}
	if flags.Help {
		printHelp(output, flagSet)
		return flags, pflag.ErrHelp
	}
	if flags.Version {
		fmt.Fprintln(output, version.GetVersionInfo().String())
		return flags, errVersionShown
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return flags, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if strings.TrimSpace(flags.ConfigPath) == "" {
		return flags, errConfigRequired
	}
	return flags, nil
}

// logLevel lets -v and -q override the configured level.
func (f flagValues) logLevel(configured logging.Level) logging.Level {
	switch {
	case f.Verbose:
		return logging.LevelDebug
	case f.Quiet:
		return logging.LevelWarning
	default:
		return configured
	}
}

func printHelp(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintln(out, "Usage: radiohub -c <config.yml> [flags]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Radio dispatch console hub: voice arbitration, affiliations and registration.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Flags:")
	fmt.Fprint(out, flagSet.FlagUsages())
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Environment variables prefixed RADIOHUB_ override file settings.")
}
