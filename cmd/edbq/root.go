package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/andreyvit/edbq"
	"github.com/andreyvit/edbq/internal/people"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions holds the settings shared by all commands. Flags override
// EDBQ_* environment variables, which override edbq.yaml.
type rootOptions struct {
	v          *viper.Viper
	configFile string
}

var validFormats = []string{"json", "yaml"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "edbq",
		Short:         "Query a people database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default ./edbq.yaml)")
	pf.String("db", "edbq.db", "database file")
	pf.Bool("mem", false, "use a transient in-memory database")
	pf.String("fixtures", "", "YAML fixtures to load before running the command")
	pf.BoolP("verbose", "v", false, "log every database operation")
	pf.String("format", "json", "output format (json|yaml)")
	pf.Int("fanout-limit", 0, "concurrent lookups of multi-value queries (default GOMAXPROCS)")
	for _, name := range []string{"db", "mem", "fixtures", "verbose", "format", "fanout-limit"} {
		_ = opts.v.BindPFlag(name, pf.Lookup(name))
	}

	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newDumpCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newReindexCommand(opts))
	return cmd
}

func (opts *rootOptions) load() error {
	v := opts.v
	v.SetEnvPrefix("EDBQ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.configFile != "" {
		v.SetConfigFile(opts.configFile)
	} else {
		v.SetConfigName("edbq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	if f := opts.format(); f != "json" && f != "yaml" {
		return fmt.Errorf("invalid format %q: must be one of %v", f, validFormats)
	}
	return nil
}

func (opts *rootOptions) format() string {
	return opts.v.GetString("format")
}

// open opens the configured database and loads fixtures if any were given.
func (opts *rootOptions) open() (*edbq.DB, error) {
	v := opts.v
	level := slog.LevelInfo
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dbOpts := edbq.Options{
		Logger:      logger,
		Verbose:     v.GetBool("verbose"),
		FanOutLimit: v.GetInt("fanout-limit"),
	}
	var db *edbq.DB
	var err error
	if v.GetBool("mem") {
		db, err = edbq.OpenMemory(people.Schema, dbOpts)
	} else {
		db, err = edbq.Open(v.GetString("db"), people.Schema, dbOpts)
	}
	if err != nil {
		return nil, err
	}

	if path := v.GetString("fixtures"); path != "" {
		if _, err := seedFile(db, path); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func closeDB(db *edbq.DB) {
	if err := db.Close(); err != nil {
		slog.Error("closing database", "error", err)
	}
}
