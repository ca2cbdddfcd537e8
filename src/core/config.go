// Utilities for reading the flaker config files.

package core

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/please-build/gcfg"

	"github.com/flaker/flaker/src/cli"
	"github.com/flaker/flaker/src/cli/logging"
)

var log = logging.Log

// ConfigFileName is the file name for the typical repo config - this is normally checked in.
const ConfigFileName string = ".flakerconfig"

// LocalConfigFileName is the file name for the local config - this is not normally checked in and used to
// override settings on the local machine.
const LocalConfigFileName string = ".flakerconfig.local"

// MachineConfigFileName is the file name for the machine-level config.
const MachineConfigFileName = "/etc/flakerconfig"

// DefaultConfigFiles returns the config files we read from by default, in order.
func DefaultConfigFiles() []string {
	return []string{MachineConfigFileName, ConfigFileName, LocalConfigFileName}
}

// A Configuration holds everything configurable about a run.
type Configuration struct {
	Parse struct {
		Concurrency int    `help:"Maximum number of files being diffed at once."`
		Extension   string `help:"Only files whose names end in this are part of the corpus."`
		Argv0       string `help:"The argv[0] each parser is invoked with."`
		Sorted      bool   `help:"Sort per-file diffs by file name before aggregating them, so reports are deterministic."`
	}
	Report struct {
		Verbosity string `help:"Report verbosity; one of summary, detailed or auto."`
	}
	Metrics struct {
		PushGatewayURL string       `help:"URL of a Prometheus push gateway to send metrics to."`
		PushFrequency  cli.Duration `help:"How often to push metrics."`
		PushTimeout    cli.Duration `help:"Timeout for each push."`
		Label          []string     `help:"Additional metric labels, as name=command; the command's output becomes the label value."`
	}
}

// DefaultConfiguration returns the default configuration.
func DefaultConfiguration() *Configuration {
	config := Configuration{}
	config.Parse.Concurrency = 10
	config.Parse.Extension = ".nix"
	config.Parse.Argv0 = "nix-instantiate"
	config.Parse.Sorted = true
	config.Report.Verbosity = "auto"
	config.Metrics.PushFrequency = cli.Duration(400 * time.Millisecond)
	config.Metrics.PushTimeout = cli.Duration(500 * time.Millisecond)
	return &config
}

func readConfigFile(config *Configuration, filename string) error {
	if err := gcfg.ReadFileInto(config, filename); err != nil && os.IsNotExist(err) {
		return nil // It's not an error to not have the file at all.
	} else if err != nil {
		return err
	}
	log.Debug("Read config from %s", filename)
	return nil
}

// ReadConfigFiles reads config files from the given locations, in order.
// Values are filled in by defaults initially and then overridden by each file in turn.
func ReadConfigFiles(filenames []string) (*Configuration, error) {
	config := DefaultConfiguration()
	for _, filename := range filenames {
		if err := readConfigFile(config, filename); err != nil {
			return config, err
		}
	}
	return config, config.Validate()
}

// Validate checks that the config values make sense.
func (config *Configuration) Validate() error {
	if config.Parse.Concurrency < 1 {
		return fmt.Errorf("parse.concurrency must be at least 1, was %d", config.Parse.Concurrency)
	} else if !strings.HasPrefix(config.Parse.Extension, ".") {
		return fmt.Errorf("parse.extension must start with a dot, was %q", config.Parse.Extension)
	} else if config.Parse.Argv0 == "" {
		return fmt.Errorf("parse.argv0 can't be empty")
	}
	for _, label := range config.Metrics.Label {
		if name, cmd, found := strings.Cut(label, "="); !found || name == "" || cmd == "" {
			return fmt.Errorf("metrics.label must be of the form name=command, was %q", label)
		}
	}
	return nil
}

// MetricLabels returns the configured metric labels as a map of name to command.
func (config *Configuration) MetricLabels() map[string]string {
	ret := make(map[string]string, len(config.Metrics.Label))
	for _, label := range config.Metrics.Label {
		if name, cmd, found := strings.Cut(label, "="); found {
			ret[name] = cmd
		}
	}
	return ret
}

// ApplyOverrides applies a set of overrides to the config.
// The keys of the given map are dot notation for the config setting.
func (config *Configuration) ApplyOverrides(overrides map[string]string) error {
	match := func(s1 string) func(string) bool {
		return func(s2 string) bool {
			return strings.ToLower(s2) == s1
		}
	}
	elem := reflect.ValueOf(config).Elem()
	for k, v := range overrides {
		split := strings.Split(strings.ToLower(k), ".")
		if len(split) != 2 {
			return fmt.Errorf("Bad option format: %s", k)
		}
		field := elem.FieldByNameFunc(match(split[0]))
		if !field.IsValid() {
			return fmt.Errorf("Unknown config field: %s", split[0])
		} else if field.Kind() != reflect.Struct {
			return fmt.Errorf("Unsettable config field: %s", split[0])
		}
		field = field.FieldByNameFunc(match(split[1]))
		if !field.IsValid() {
			return fmt.Errorf("Unknown config field: %s", split[1])
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(v)
		case reflect.Bool:
			v = strings.ToLower(v)
			// Mimics the set of truthy things gcfg accepts in our config file.
			field.SetBool(v == "true" || v == "yes" || v == "on" || v == "1")
		case reflect.Int:
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("Invalid value for an integer field: %s", v)
			}
			field.SetInt(int64(i))
		case reflect.Int64:
			// Durations are the only int64 fields we have.
			var d cli.Duration
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("Invalid value for a duration field: %s", v)
			}
			field.SetInt(int64(d))
		case reflect.Slice:
			// We only have to worry about slices of strings. Comma-separated values are accepted.
			field.Set(reflect.ValueOf(strings.Split(v, ",")))
		default:
			return fmt.Errorf("Can't override config field %s", k)
		}
	}
	return config.Validate()
}
