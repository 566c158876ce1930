package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"sruwatch/config"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:          "sruwatch",
		Short:        "Live unit and economy telemetry for Supreme Ruler Ultimate",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML); SRUWATCH_* env vars override it")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every component to stderr")
	root.AddCommand(runCmd())
	root.AddCommand(dumpCmd())
	root.AddCommand(layoutsCmd())
	root.AddCommand(catalogCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// logger devolve um logger com tag no stderr, ou um que descarta sem --verbose.
func logger(tag string) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "["+tag+"] ", log.LstdFlags)
}
