package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel       string
	LogFormat      string
	LogFile        string
	DebugRTSP      bool
	DebugPipeline  bool
	DebugRTP       bool
	DebugQueue     bool
	DebugAll       bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info",
		"Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text",
		"Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "",
		"Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "",
		"Log output file path (shorthand)")

	fs.BoolVar(&f.DebugRTSP, "debug-rtsp", false,
		"Enable RTSP message debugging (M1-M7 exchange, SETUP/PLAY/TEARDOWN)")
	fs.BoolVar(&f.DebugPipeline, "debug-pipeline", false,
		"Enable pipeline stage debugging (worker timings, state transitions)")
	fs.BoolVar(&f.DebugRTP, "debug-rtp", false,
		"Enable RTP datagram debugging (sequence, timestamp, payload)")
	fs.BoolVar(&f.DebugQueue, "debug-queue", false,
		"Enable buffer queue occupancy debugging")
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	cfg.OutputFile = f.LogFile

	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		cfg.Level = LevelDebug
	} else {
		if f.DebugRTSP {
			cfg.EnableCategory(DebugRTSP)
			cfg.Level = LevelDebug
		}
		if f.DebugPipeline {
			cfg.EnableCategory(DebugPipeline)
			cfg.Level = LevelDebug
		}
		if f.DebugRTP {
			cfg.EnableCategory(DebugRTP)
			cfg.Level = LevelDebug
		}
		if f.DebugQueue {
			cfg.EnableCategory(DebugQueue)
			cfg.Level = LevelDebug
		}
	}

	return cfg, nil
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./aethercastd

  Enable DEBUG level:
    ./aethercastd --log-level debug
    ./aethercastd -l debug

  Log to file:
    ./aethercastd --log-file aethercastd.log
    ./aethercastd -o aethercastd.log

  JSON format for structured logging:
    ./aethercastd --log-format json -o aethercastd.json

  Debug the RTSP/WFD handshake only:
    ./aethercastd --debug-rtsp

  Debug RTP datagrams only:
    ./aethercastd --debug-rtp

  Debug multiple categories:
    ./aethercastd --debug-rtsp --debug-pipeline

  Debug everything:
    ./aethercastd --debug-all -o debug.log

  Production logging (WARN level, JSON to file):
    ./aethercastd -l warn --log-format json -o production.log
`
	fmt.Println(examples)
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var debugCategories []string
	if f.DebugAll {
		debugCategories = append(debugCategories, "all")
	} else {
		if f.DebugRTSP {
			debugCategories = append(debugCategories, "rtsp")
		}
		if f.DebugPipeline {
			debugCategories = append(debugCategories, "pipeline")
		}
		if f.DebugRTP {
			debugCategories = append(debugCategories, "rtp")
		}
		if f.DebugQueue {
			debugCategories = append(debugCategories, "queue")
		}
	}

	if len(debugCategories) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugCategories, ",")))
	}

	return strings.Join(parts, " ")
}
