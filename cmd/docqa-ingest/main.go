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

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"docqa/internal/client"
)

var supportedExt = map[string]bool{
	".txt": true, ".md": true, ".html": true, ".htm": true, ".pdf": true,
}

func main() {
	_ = godotenv.Load()

	var serverURL string
	flag.StringVar(&serverURL, "server", "http://localhost:8000", "Base URL of the docqa server")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Println("Usage: docqa-ingest [--server=http://host:port] file-or-dir [...]")
		os.Exit(1)
	}

	files, err := collectFiles(paths)
	if err != nil {
		color.Red("scanning inputs: %v", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		color.Yellow("no supported documents found (txt, md, html, pdf)")
		os.Exit(1)
	}

	api := client.New(serverURL, 5*time.Minute)
	ctx := context.Background()

	ok, failed := 0, 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			color.Red("  %s: %v", path, err)
			failed++
			continue
		}
		result, err := api.Upload(ctx, filepath.Base(path), data)
		if err != nil {
			color.Red("  %s: %v", path, err)
			failed++
			continue
		}
		color.Green("  %s: %d chunks (%s)", path, result.ChunksProcessed, result.DocumentID)
		if result.Summary != "" {
			color.White("    %s", result.Summary)
		}
		ok++
	}

	fmt.Println()
	if failed > 0 {
		color.Yellow("ingested %d of %d documents (%d failed)", ok, len(files), failed)
		os.Exit(1)
	}
	color.Green("ingested %d documents", ok)
}

func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supportedExt[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
