package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/frame-console-mcp/internal/config"
	"github.com/ironsheep/frame-console-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("frame-console-mcp - MCP server for raw frame inspection and inference")
	fmt.Println()
	fmt.Println("Usage: frame-console-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config PATH          Load configuration from a YAML file")
	fmt.Println("  --write-config PATH    Write the effective configuration and exit")
	fmt.Println("  --version, -v          Print version information")
	fmt.Println("  --help, -h             Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=path        Configuration file (when --config is not given)\n", config.EnvConfigPath)
	fmt.Printf("  %s=debug    Enable debug logging\n", config.EnvLogLevel)
	fmt.Printf("  %s=url    Inference backend base URL\n", config.EnvBackendURL)
	fmt.Printf("  %s=url       Backend log stream URL\n", config.EnvLogsURL)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

func main() {
	configPath := os.Getenv(config.EnvConfigPath)
	writePath := ""

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v", "version":
			fmt.Printf("frame-console-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		case "--config", "--write-config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a path\n", args[i])
				os.Exit(2)
			}
			if args[i] == "--config" {
				configPath = args[i+1]
			} else {
				writePath = args[i+1]
			}
			i++
		default:
			fmt.Fprintf(os.Stderr, "unknown option %q (see --help)\n", args[i])
			os.Exit(2)
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err != nil {
		log.WithField("level", cfg.Logging.Level).Warn("unknown log level, using info")
	} else {
		log.SetLevel(level)
	}

	if writePath != "" {
		if err := config.SaveConfig(cfg, writePath); err != nil {
			log.WithError(err).Fatal("failed to write configuration")
		}
		fmt.Fprintf(os.Stderr, "configuration written to %s\n", writePath)
		return
	}

	log.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
		"backend": cfg.Backend.BaseURL,
	}).Debug("Frame console MCP server starting")

	server.Version = Version
	srv := server.New(cfg, log)
	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("Server error")
	}
}
