// Command spimidx builds and queries a SPIMI block inverted index over a
// line-delimited JSON corpus.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/spimidx/internal/config"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "spimidx",
		Usage:   "SPIMI block index builder and TF-IDF searcher",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to index.kdl",
				Value: "index.kdl",
			},
		},
		Commands: []*cli.Command{
			buildCommand(),
			searchCommand(),
			debugCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "spimidx:", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadKDL(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
