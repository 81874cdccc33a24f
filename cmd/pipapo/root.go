// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gaissmai/pipapo"
	"github.com/gaissmai/pipapo/internal/ruleset"
)

const (
	cfgConfigFile = "config"
	cfgLogLevel   = "log_level"
	cfgTable      = "table"
	cfgRules      = "rules"
)

// app is the state shared by all subcommands.
type app struct {
	config *viper.Viper
	log    *zap.Logger
	table  pipapo.Config
}

func newRootCmd() *cobra.Command {
	a := &app{config: viper.New()}

	cmd := &cobra.Command{
		Use:           "pipapo",
		Short:         "Multi-field range set classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(cfgConfigFile, "", "Config file with the table tunables (yaml)")
	flags.String("log-level", "warn", "Log level: debug, info, warn or error")
	flags.StringP(cfgRules, "r", "", "Rule file (yaml)")

	a.config.SetEnvPrefix("PIPAPO")
	a.config.AutomaticEnv()
	a.config.SetDefault(cfgLogLevel, "warn")

	// the flags are parsed before setup runs
	for key, flag := range map[string]string{
		cfgConfigFile: cfgConfigFile,
		cfgLogLevel:   "log-level",
		cfgRules:      cfgRules,
	} {
		if err := a.config.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(
		newEstimateCmd(a),
		newLookupCmd(a),
		newDumpCmd(a),
		newClassifyCmd(a),
		newBenchCmd(a),
	)
	return cmd
}

// setup reads the config file and creates the logger.
func (a *app) setup() error {
	if path := a.config.GetString(cfgConfigFile); path != "" {
		a.config.SetConfigFile(path)
		if err := a.config.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config %s", path)
		}
	}

	a.table = pipapo.DefaultConfig()
	if err := a.config.UnmarshalKey(cfgTable, &a.table); err != nil {
		return errors.Wrap(err, "decoding table config")
	}
	if err := a.table.Validate(); err != nil {
		return err
	}

	level, err := zapcore.ParseLevel(a.config.GetString(cfgLogLevel))
	if err != nil {
		return errors.Wrap(err, "log level")
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if a.log, err = zc.Build(); err != nil {
		return errors.Wrap(err, "creating logger")
	}

	a.log.Debug("config loaded",
		zap.String("file", a.config.ConfigFileUsed()),
		zap.Int("group_bits", a.table.GroupBits),
		zap.Int("regroup_bits", a.table.RegroupBits))
	return nil
}

// ruleFile loads the rule file named by --rules.
func (a *app) ruleFile() (*ruleset.File, error) {
	path := a.config.GetString(cfgRules)
	if path == "" {
		return nil, errors.New("no rule file, use --rules")
	}
	return ruleset.LoadFile(path)
}

// buildSet loads the rule file and builds its set.
func (a *app) buildSet(opts ...pipapo.Option) (*ruleset.File, *pipapo.Set, error) {
	f, err := a.ruleFile()
	if err != nil {
		return nil, nil, err
	}

	opts = append([]pipapo.Option{
		pipapo.WithConfig(a.table),
		pipapo.WithLogger(a.log),
	}, opts...)

	s, err := f.Build(opts...)
	if err != nil {
		return nil, nil, err
	}
	return f, s, nil
}

// fieldsFlag adds the --fields flag for a list of field lengths.
func fieldsFlag(fs *pflag.FlagSet, p *[]int, value []int) {
	fs.IntSliceVar(p, "fields", value, "Field lengths in bytes")
}
