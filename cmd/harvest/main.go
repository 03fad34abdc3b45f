// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/harvest/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "harvest",
		Usage: "Crawl sites and documents into searchable vector databases",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "harvest.yaml",
				EnvVars: []string{"HARVEST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file with HARVEST_* overrides",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Override the data directory",
			},
			&cli.StringFlag{
				Name:    "owner",
				Aliases: []string{"o"},
				Usage:   "Owner that jobs and databases are recorded under",
				Value:   "local",
				EnvVars: []string{"HARVEST_OWNER"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); defaults to the config value",
			},
		},
		Before: before,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, job executor and watchdog",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Override the listen address",
					},
				},
			},
			{
				Name:      "scrape",
				Usage:     "Crawl a URL into a scrape job and wait for it to finish",
				ArgsUsage: "URL",
				Action:    scrapeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Crawl mode (single, deep, sitemap)",
						Value: "single",
					},
					&cli.IntFlag{
						Name:  "max-depth",
						Usage: "Link depth for deep crawls (0 selects the default)",
					},
					&cli.IntFlag{
						Name:  "max-pages",
						Usage: "Page limit for deep and sitemap crawls (0 selects the default)",
					},
				},
			},
			{
				Name:      "upload",
				Usage:     "Extract text from local files into document jobs",
				ArgsUsage: "FILE...",
				Action:    uploadCommand,
			},
			{
				Name:   "build",
				Usage:  "Build a vector database from completed jobs and wait for it",
				Action: buildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Database name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Database description",
					},
					&cli.StringFlag{
						Name:  "job",
						Usage: "Scrape job id",
					},
					&cli.StringSliceFlag{
						Name:  "doc",
						Usage: "Document job id (repeatable)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query a vector database",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Vector database id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Search mode (keyword, semantic, hybrid)",
						Value: "semantic",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results",
						Value:   5,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question, or chat interactively when no question is given",
				ArgsUsage: "[QUESTION]",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Vector database id",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Retrieval mode (keyword, semantic, hybrid)",
						Value: "hybrid",
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "Continue a stored chat session",
					},
					&cli.BoolFlag{
						Name:  "new-session",
						Usage: "Start a stored chat session on --db",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "Chat model for a new session",
					},
				},
			},
			{
				Name:   "sessions",
				Usage:  "List stored chat sessions",
				Action: sessionsCommand,
				Subcommands: []*cli.Command{
					{
						Name:      "history",
						Usage:     "Print the messages of a session",
						ArgsUsage: "SESSION",
						Action:    historyCommand,
					},
					{
						Name:      "delete",
						Usage:     "Delete a session and its messages",
						ArgsUsage: "SESSION",
						Action:    deleteSessionCommand,
					},
				},
			},
			{
				Name:   "jobs",
				Usage:  "List scrape jobs, document jobs and vector databases",
				Action: jobsCommand,
			},
			{
				Name:      "status",
				Usage:     "Show a job or database as JSON",
				ArgsUsage: "ID",
				Action:    statusCommand,
			},
			{
				Name:   "reclaim",
				Usage:  "Delete search indexes that no database record owns",
				Action: reclaimCommand,
			},
		},
	}
}

const configKey = "config"

// before loads the configuration and installs the logger.
func before(c *cli.Context) error {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(levelStr string) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
