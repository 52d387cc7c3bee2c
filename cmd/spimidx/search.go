package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/spimidx/internal/search"
	"github.com/standardbeagle/spimidx/internal/textpipeline"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Query a built index",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "index-dir", Usage: "Index directory", Value: "index"},
			&cli.StringFlag{Name: "default-language", Usage: "Override DEFAULT_QUERY_LANGUAGE for this query"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("usage: spimidx search [options] <query>")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			pipeline := textpipeline.New(cfg, textpipeline.NewOverlapDetector(), textpipeline.NewPorter2Stemmer(), textpipeline.NewDefaultStopwords())

			engine, err := search.Load(c.String("index-dir"), cfg, pipeline)
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx, cancel := newContext()
			defer cancel()

			resp, err := engine.Search(ctx, c.Args().First(), c.String("default-language"))
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}
