// cmd/tools/kb-loader/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"care-assistant/internal/common/config"
	skb "care-assistant/internal/workers/data-access/search-knowledge-base"
)

func main() {
	dir := flag.String("dir", "docs/knowledge", "Directory with markdown knowledge documents")
	dryRun := flag.Bool("dry-run", false, "Print the passages instead of indexing them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.KnowledgeBase.Backend != "chromem" {
		fmt.Printf("kb-loader indexes the chromem backend only (configured: %s)\n", cfg.KnowledgeBase.Backend)
		os.Exit(1)
	}

	passages, err := collect(*dir)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", *dir, err)
		os.Exit(1)
	}
	if *dryRun {
		for _, p := range passages {
			fmt.Printf("%-30s %-30s %d chars\n", p.ID, p.Title, len(p.Content))
		}
		return
	}

	kb := cfg.KnowledgeBase
	backend, err := skb.OpenVectorBackend(kb.Path, kb.Collection, skb.EmbeddingFunc(kb.EmbeddingURL, kb.EmbeddingKey, kb.EmbeddingModel))
	if err != nil {
		fmt.Printf("Error opening knowledge store: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := backend.Add(ctx, passages...); err != nil {
		fmt.Printf("Error indexing passages: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d passages into %s/%s\n", len(passages), kb.Path, kb.Collection)
}

func collect(dir string) ([]skb.Passage, error) {
	var out []skb.Passage
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		id := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
		out = append(out, skb.SplitMarkdown(id, strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())), string(raw))...)
		return nil
	})
	return out, err
}
