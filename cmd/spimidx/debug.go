package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/spimidx/internal/textpipeline"
)

// debugCommand groups the auxiliary inspection surfaces. They are
// diagnostic aids, not part of the build/search contract.
func debugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Inspect pipeline stages and on-disk artifacts",
		Subcommands: []*cli.Command{
			debugPipelineCommand(),
			debugValidateCorpusCommand(),
			debugInspectBlockCommand(),
		},
	}
}

func debugPipelineCommand() *cli.Command {
	return &cli.Command{
		Name:      "pipeline",
		Usage:     "Run the text pipeline over a string and print the resulting tokens",
		ArgsUsage: "<text>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("usage: spimidx debug pipeline <text>")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			pipeline := textpipeline.New(cfg, textpipeline.NewOverlapDetector(), textpipeline.NewPorter2Stemmer(), textpipeline.NewDefaultStopwords())
			text := strings.Join(c.Args().Slice(), " ")
			tokens, language := pipeline.Run(text, cfg.Language.DefaultLanguage)
			return printJSON(map[string]interface{}{
				"language": language,
				"tokens":   tokens,
			})
		},
	}
}

func intPtr(v int) *int { return &v }

var corpusLineSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"doc_id", "text"},
	Properties: map[string]*jsonschema.Schema{
		"doc_id": {Type: "string", MinLength: intPtr(1)},
		"title":  {Type: "string"},
		"text":   {Type: "string", MinLength: intPtr(1)},
		"url":    {Type: "string"},
	},
}

func debugValidateCorpusCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate-corpus",
		Usage:     "Validate every line of a corpus file against the document record schema",
		ArgsUsage: "<corpus-path>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("usage: spimidx debug validate-corpus <corpus-path>")
			}

			resolved, err := corpusLineSchema.Resolve(nil)
			if err != nil {
				return fmt.Errorf("resolving corpus schema: %w", err)
			}

			f, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()

			var (
				total, valid int
				problems     []map[string]interface{}
			)

			sc := bufio.NewScanner(f)
			sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
			lineNo := 0
			for sc.Scan() {
				lineNo++
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				total++

				var doc interface{}
				if err := json.Unmarshal([]byte(line), &doc); err != nil {
					problems = append(problems, map[string]interface{}{"line": lineNo, "error": err.Error()})
					continue
				}
				if err := resolved.Validate(doc); err != nil {
					problems = append(problems, map[string]interface{}{"line": lineNo, "error": err.Error()})
					continue
				}
				valid++
			}
			if err := sc.Err(); err != nil {
				return err
			}

			return printJSON(map[string]interface{}{
				"total_lines": total,
				"valid_lines": valid,
				"problems":    problems,
			})
		},
	}
}

func debugInspectBlockCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect-block",
		Usage:     "Print the terms and posting counts of a block postings file",
		ArgsUsage: "<block-postings-path>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return fmt.Errorf("usage: spimidx debug inspect-block <block-postings-path>")
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()

			type termSummary struct {
				Term     string `json:"term"`
				Postings int    `json:"postings"`
			}
			var summaries []termSummary

			sc := bufio.NewScanner(f)
			sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
			for sc.Scan() {
				line := sc.Text()
				idx := strings.IndexByte(line, '\t')
				if idx < 0 {
					continue
				}
				var pairs [][2]uint64
				if err := json.Unmarshal([]byte(line[idx+1:]), &pairs); err != nil {
					continue
				}
				summaries = append(summaries, termSummary{Term: line[:idx], Postings: len(pairs)})
			}
			if err := sc.Err(); err != nil {
				return err
			}
			return printJSON(summaries)
		},
	}
}
