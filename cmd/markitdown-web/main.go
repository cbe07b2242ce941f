// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

// Command markitdown-web serves the Universal Document Reader and converts
// documents from the command line.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	markitdown "github.com/nicholasgasior/markitdown-web"
	"github.com/nicholasgasior/markitdown-web/internal/batch"
	"github.com/nicholasgasior/markitdown-web/internal/config"
	"github.com/nicholasgasior/markitdown-web/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "markitdown-web",
	Short: "Convert office documents, PDFs and HTML into Markdown",
	Long: `markitdown-web converts Word, Excel, PowerPoint, PDF and HTML files (and zip
archives of them) into Markdown. "serve" runs the upload page; "convert" runs
the same conversion over local files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if envFile != "" {
			return config.LoadEnvFiles(envFile)
		}
		return config.LoadEnvFiles()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./markitdown-web.yaml or ~/.config/markitdown-web/config.yaml)")
	rootCmd.PersistentFlags().String("env-file", "", "dotenv file to load (default: ./.env when present)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "json", "log format: json or text")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	config.Prepare(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(config.FileName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", config.FileName))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setup loads the configuration and builds the logger and batch processor
// every subcommand shares.
func setup(logOut io.Writer) (*config.Config, *slog.Logger, *batch.Processor, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	maxEntry, maxTotal, err := cfg.Conversion.ArchiveLimits()
	if err != nil {
		return nil, nil, nil, err
	}
	engine := markitdown.New(
		markitdown.WithArchiveLimits(maxEntry, maxTotal),
		markitdown.WithKeepDataURIs(cfg.Conversion.KeepDataURIs),
		markitdown.WithSanitizeHTML(cfg.Conversion.SanitizeHTML),
		markitdown.WithLogger(logger),
	)
	processor := batch.NewProcessor(engine,
		batch.WithAllowedExtensions(cfg.Conversion.AllowedExtensions...),
		batch.WithTimeout(cfg.Conversion.Timeout),
		batch.WithLogger(logger),
	)
	return cfg, logger, processor, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
