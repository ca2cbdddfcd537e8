package main

import (
	"os"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/flaker/flaker/src/cli"
	"github.com/flaker/flaker/src/cli/logging"
	"github.com/flaker/flaker/src/core"
	"github.com/flaker/flaker/src/diff"
	"github.com/flaker/flaker/src/metrics"
	"github.com/flaker/flaker/src/process"
	"github.com/flaker/flaker/src/report"
)

var log = logging.Log

var config *core.Configuration

var opts struct {
	Usage string `usage:"flaker runs two versions of a parser over a corpus of source files and reports where they disagree."`

	OutputFlags struct {
		Verbosity    cli.Verbosity `short:"v" long:"verbosity" default:"notice" description:"Verbosity of output (error, warning, notice, info, debug)"`
		LogFile      cli.Filepath  `long:"log_file" description:"File to echo full logging output to"`
		LogFileLevel cli.Verbosity `long:"log_file_level" default:"debug" description:"Log level for file output"`
		LogAppend    bool          `long:"log_append" description:"Append log to existing file instead of overwriting its content"`
		Colour       bool          `long:"colour" description:"Forces coloured output from logging & other shell output."`
		NoColour     bool          `long:"nocolour" description:"Forces colourless output from logging & other shell output."`
	} `group:"Options controlling output & logging"`

	ConfigFlags struct {
		Config   cli.Filepaths     `short:"c" long:"config" description:"Additional config files to read, after the default ones"`
		Override map[string]string `long:"override" description:"Options to override from config, e.g. --override parse.concurrency:4"`
	} `group:"Options controlling configuration"`

	NixParse struct {
		Out  string `short:"o" long:"out" description:"File to write the report to; must end in .json or .msgpack, optionally followed by .xz"`
		Args struct {
			Folder cli.Filepath `positional-arg-name:"folder" required:"true" description:"Path to the folder to diff"`
			NixA   cli.Filepath `positional-arg-name:"nix_a" required:"true" description:"Path to a Nix binary"`
			NixB   cli.Filepath `positional-arg-name:"nix_b" required:"true" description:"Path to a Nix binary"`
		} `positional-args:"true" required:"true"`
	} `command:"nix-parse" description:"Runs two Nix versions on all sources and diffs the results"`

	Report struct {
		Verbosity *report.Verbosity `long:"verbosity" description:"Report verbosity (summary, detailed or auto). Defaults to the configured one."`
		Args      struct {
			Reports cli.StdinStrings `positional-arg-name:"reports" required:"true" description:"Reports to render. Pass - to read their names from stdin."`
		} `positional-args:"true" required:"true"`
	} `command:"report" description:"Renders one or more previously written reports"`
}

// Functions implementing each command. They return true on success.
var commands = map[string]func() bool{
	"nix-parse": func() bool {
		metrics.InitFromConfig(config)
		defer metrics.Stop()
		folder := string(opts.NixParse.Args.Folder)
		nixA := string(opts.NixParse.Args.NixA)
		nixB := string(opts.NixParse.Args.NixB)
		started := time.Now()
		differ := diff.NewDiffer(process.New(config.Parse.Argv0), nixA, nixB)
		result, err := diff.Run(cli.Context(), config, folder, differ)
		if err != nil {
			log.Error("Failed to diff %s: %s", folder, err)
			return false
		}
		r := report.New(folder, nixA, nixB, started, result)
		report.Render(sink(), []*report.Report{r}, reportVerbosity(nil))
		if opts.NixParse.Out != "" {
			if err := r.Save(opts.NixParse.Out); err != nil {
				log.Error("%s", err)
				return false
			}
		}
		return true
	},
	"report": func() bool {
		reports, err := report.LoadAll(opts.Report.Args.Reports.Get())
		if err != nil {
			log.Error("%s", err)
			return false
		}
		report.Render(sink(), reports, reportVerbosity(opts.Report.Verbosity))
		return true
	},
}

// reportVerbosity returns the verbosity to render reports at; the given flag value wins over config if set.
func reportVerbosity(flag *report.Verbosity) report.Verbosity {
	if flag != nil {
		return *flag
	}
	verbosity, _ := report.ParseVerbosity(config.Report.Verbosity) // Already validated in readConfig
	return verbosity
}

// sink returns where reports are rendered to.
func sink() report.Sink {
	if cli.ShowColouredOutput {
		return log
	}
	return report.Plain(log)
}

// readConfig reads the config files and applies any overrides from the command line.
func readConfig() *core.Configuration {
	files := append(core.DefaultConfigFiles(), opts.ConfigFlags.Config.AsStrings()...)
	config, err := core.ReadConfigFiles(files)
	if err != nil {
		log.Fatalf("Error reading config file: %s", err)
	} else if err := config.ApplyOverrides(opts.ConfigFlags.Override); err != nil {
		log.Fatalf("Can't override requested config setting: %s", err)
	} else if _, err := report.ParseVerbosity(config.Report.Verbosity); err != nil {
		log.Fatalf("Invalid report.verbosity: %s", err)
	}
	return config
}

func main() {
	command := cli.ParseFlagsOrDie("flaker", &opts)
	if opts.OutputFlags.Colour {
		cli.ShowColouredOutput = true
	} else if opts.OutputFlags.NoColour {
		cli.ShowColouredOutput = false
	}
	cli.InitLogging(opts.OutputFlags.Verbosity)
	if opts.OutputFlags.LogFile != "" {
		cli.InitFileLogging(string(opts.OutputFlags.LogFile), opts.OutputFlags.LogFileLevel, opts.OutputFlags.LogAppend)
	}
	config = readConfig()
	if commands[command]() {
		os.Exit(0)
	}
	os.Exit(1)
}
