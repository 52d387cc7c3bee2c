package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/spimidx/internal/blockworker"
	"github.com/standardbeagle/spimidx/internal/config"
	"github.com/standardbeagle/spimidx/internal/corpus"
	"github.com/standardbeagle/spimidx/internal/merge"
	"github.com/standardbeagle/spimidx/internal/schedule"
	"github.com/standardbeagle/spimidx/internal/textpipeline"
)

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Build a fresh index from a corpus file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "corpus", Usage: "Path to the line-delimited JSON corpus (defaults to the configured corpus)"},
			&cli.StringFlag{Name: "index-dir", Usage: "Directory to publish the built index into", Value: "index"},
			&cli.StringFlag{Name: "scratch-dir", Usage: "Directory for block/doc-store scratch files", Value: ""},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			corpusPath := c.String("corpus")
			if corpusPath == "" {
				corpusPath = cfg.Index.CorpusPath
			}
			if corpusPath == "" {
				return fmt.Errorf("no corpus given: pass --corpus or set index { corpus \"...\" } in index.kdl")
			}
			return runBuild(cfg, corpusPath, c.String("index-dir"), c.String("scratch-dir"))
		},
	}
}

func runBuild(cfg *config.Config, corpusPath, indexDir, scratchDir string) error {
	if scratchDir == "" {
		var err error
		scratchDir, err = os.MkdirTemp("", "spimidx-build-*")
		if err != nil {
			return fmt.Errorf("creating scratch dir: %w", err)
		}
	}
	blocksDir := filepath.Join(scratchDir, "blocks")
	docStorePartsDir := filepath.Join(scratchDir, "doc_store_parts")
	if err := os.MkdirAll(blocksDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(docStorePartsDir, 0o755); err != nil {
		return err
	}

	pipeline := textpipeline.New(cfg, textpipeline.NewOverlapDetector(), textpipeline.NewPorter2Stemmer(), textpipeline.NewDefaultStopwords())

	ctx, cancel := newContext()
	defer cancel()

	ranges, rangeErr := corpus.Partition(ctx, corpusPath, cfg.Index.BlockDocs)

	sched := schedule.New(cfg)
	newTask := schedule.TaskBuilder(cfg.Index.BlockDocs, corpusPath, blocksDir, docStorePartsDir, cfg.Language.DefaultLanguage)

	// Partial outputs are discarded on failure unless scratch retention
	// is configured.
	discardScratch := func() {
		if !cfg.Scheduler.KeepBlocks {
			os.RemoveAll(blocksDir)
			os.RemoveAll(docStorePartsDir)
		}
	}

	results, err := sched.Run(ctx, ranges, rangeErr, newTask, func(ctx context.Context, task blockworker.Task) blockworker.Result {
		return blockworker.Process(ctx, task, pipeline)
	})
	if err != nil {
		discardScratch()
		return fmt.Errorf("build failed: %w", err)
	}

	meta, err := merge.Run(results, merge.Options{
		IndexDir:         indexDir,
		BlocksDir:        blocksDir,
		DocStorePartsDir: docStorePartsDir,
		MinDF:            cfg.Search.MinDF,
		MaxDFRatio:       cfg.Search.MaxDFRatio,
		KeepBlocks:       cfg.Scheduler.KeepBlocks,
	})
	if err != nil {
		discardScratch()
		return fmt.Errorf("merge failed: %w", err)
	}

	return printJSON(map[string]interface{}{
		"indexed_docs": meta.N,
		"vocab_size":   meta.VocabSize,
		"index_path":   indexDir,
	})
}
