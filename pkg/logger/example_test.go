package logger_test

import (
	"fmt"
	"os"

	"github.com/aethercast/source/pkg/logger"
)

// Example showing basic logger usage
func ExampleLogger_basic() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatText

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	log.Info("source started", "version", "1.0.0")
	log.Warn("deprecated parameter used", "param", "wfd_content_protection")
	log.Error("failed to connect", "error", "connection timeout")
}

// Example showing debug category usage
func ExampleLogger_categories() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelDebug
	cfg.EnableCategory(logger.DebugRTSP)
	cfg.EnableCategory(logger.DebugRTP)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	log.DebugRTPDatagram(12345, 90000, 33, 1316)
	log.DebugRTSPMessage("tx", []byte("RTSP/1.0 200 OK\r\nCSeq: 1\r\n\r\n"))

	log.DebugRTSP("handshake message sent", "method", "M1")
	log.DebugRTP("datagram sent", "seq", 12345)
}

// Example showing command-line flags integration
func ExampleFlags() {
	// In main.go:
	// import (
	//     "flag"
	//     "github.com/aethercast/source/pkg/logger"
	// )
	//
	// fs := flag.NewFlagSet("aethercastd", flag.ExitOnError)
	// logFlags := logger.RegisterFlags(fs)
	// fs.Parse(os.Args[1:])
	//
	// logConfig, _ := logFlags.ToConfig()
	// log, _ := logger.New(logConfig)
	// defer log.Close()

	fmt.Println("See cmd/aethercastd/main.go for complete example")
}

// Example showing JSON format output
func ExampleLogger_json() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatJSON
	cfg.OutputFile = "aethercastd.json"

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()
	defer os.Remove("aethercastd.json")

	log.Info("sink connected",
		"peer_address", "192.168.49.1",
		"port", 7236)

	// Output will be in JSON format:
	// {"time":"...","level":"INFO","msg":"sink connected","peer_address":"192.168.49.1","port":7236}
}

// Example showing conditional debug logging
func ExampleLogger_conditional() {
	cfg := logger.NewConfig()
	cfg.EnableCategory(logger.DebugQueue)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// Only executes if DebugQueue is enabled, zero cost otherwise.
	log.DebugQueue("frame queue depth", "depth", 3, "capacity", 8)
}
