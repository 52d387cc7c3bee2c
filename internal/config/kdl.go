package config

import (
	"fmt"
	"os"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL reads index.kdl from path. A missing file is not an error: the
// caller gets Default() back untouched.
func LoadKDL(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parseKDL(string(content))
}

func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse index.kdl: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "language":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "default":
					if s, ok := firstStringArg(cn); ok {
						cfg.Language.DefaultLanguage = s
					}
				case "default_query":
					if s, ok := firstStringArg(cn); ok {
						cfg.Language.DefaultQueryLanguage = s
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "top_k":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.TopK = v
					}
				case "min_token_len":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MinTokenLen = v
					}
				case "min_df":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MinDF = v
					}
				case "max_df_ratio":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Search.MaxDFRatio = v
					}
				}
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "block_docs":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.BlockDocs = v
					}
				case "corpus":
					if s, ok := firstStringArg(cn); ok {
						cfg.Index.CorpusPath = s
					}
				}
			}
		case "scheduler":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scheduler.Workers = v
					}
				case "max_in_flight":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scheduler.MaxInFlight = v
					}
				case "max_tasks_per_child":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scheduler.MaxTasksPerChild = v
					}
				case "keep_blocks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Scheduler.KeepBlocks = b
					}
				}
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
