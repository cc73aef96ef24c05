package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clothdna/authenticity"
	"clothdna/config"
	"clothdna/database"
	"clothdna/features"
	"clothdna/logging"
	"clothdna/pipeline"
	"clothdna/storage"
)

type globalFlags struct {
	config    string
	database  string
	outputDir string
	noDocs    bool
	algorithm string
	policy    string
	logLevel  string
	logFile   string
	logFormat string
	debug     bool
}

// commandContext resolves configuration and owns the resources opened for
// one command.
type commandContext struct {
	flags globalFlags

	cfg       config.Config
	store     *database.Store
	docs      *storage.DocumentStore
	processor *pipeline.Processor
}

func (c *commandContext) bindFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&c.flags.config, "config", "c", "", "Configuration file path (TOML)")
	f.StringVar(&c.flags.database, "database", "", "Path to the sqlite item database")
	f.StringVar(&c.flags.outputDir, "output-dir", "", "Directory for JSON documents")
	f.BoolVar(&c.flags.noDocs, "no-docs", false, "Do not write JSON documents")
	f.StringVar(&c.flags.algorithm, "algorithm", "", "Digest for new registrations: sha256 or blake3")
	f.StringVar(&c.flags.policy, "policy", "", "Hash policy for new registrations: content or audit")
	f.StringVar(&c.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&c.flags.logFile, "log-file", "", "Append logs to this file")
	f.StringVar(&c.flags.logFormat, "log-format", "", "Log format: text or json")
	f.BoolVar(&c.flags.debug, "debug", false, "Shortcut for --log-level=debug with logs on stderr")
}

// loadConfig reads the config file and applies flag overrides.
func (c *commandContext) loadConfig() error {
	cfg, err := config.Load(c.flags.config)
	if err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Database.Path, c.flags.database)
	set(&cfg.Storage.OutputDir, c.flags.outputDir)
	set(&cfg.Hash.Algorithm, strings.ToLower(c.flags.algorithm))
	set(&cfg.Hash.Policy, strings.ToLower(c.flags.policy))
	set(&cfg.Logging.Level, c.flags.logLevel)
	set(&cfg.Logging.File, c.flags.logFile)
	set(&cfg.Logging.Format, c.flags.logFormat)
	if c.flags.noDocs {
		cfg.Storage.Enabled = false
	}
	if c.flags.debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	return logging.SetupLogger(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Stderr: c.flags.debug,
	})
}

// open creates the repository, document store and processor. On error
// nothing stays open.
func (c *commandContext) open() (err error) {
	store, err := database.InitDatabase(c.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database %s: %w", c.cfg.Database.Path, err)
	}
	c.store = store
	defer func() {
		if err != nil {
			c.closeStore()
			c.docs = nil
		}
	}()

	opts := pipeline.Options{
		Algorithm: authenticity.Algorithm(c.cfg.Hash.Algorithm),
		Policy:    authenticity.Policy(c.cfg.Hash.Policy),
	}
	if c.cfg.Storage.Enabled {
		docs, err := storage.NewDocumentStore(c.cfg.Storage.OutputDir)
		if err != nil {
			return err
		}
		c.docs = docs
		opts.Documents = docs
	}
	if c.cfg.Simulated.Enabled {
		opts.Simulated = features.NewSimulatedSource(c.cfg.Simulated.Seed, c.cfg.Simulated.Size)
	}

	c.processor, err = pipeline.New(store, opts)
	return err
}

func (c *commandContext) closeStore() {
	if c.store == nil {
		return
	}
	if err := c.store.Close(); err != nil {
		logging.LogError("closing database", "path", c.cfg.Database.Path, "error", err)
		fmt.Fprintf(os.Stderr, "Warning: closing database: %v\n", err)
	}
	c.store = nil
}

func (c *commandContext) close() {
	c.closeStore()
	logging.CloseLogger()
}
