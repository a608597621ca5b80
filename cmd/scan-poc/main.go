// Command scan-poc runs one scan against a local image file, using
// the same configuration as the server. Useful for trying prompts and
// enrichment credentials without running the HTTP service.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"itemscan/internal/config"
	"itemscan/internal/llm"
	"itemscan/internal/scan"
	"itemscan/internal/search"
	"itemscan/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n")
		fmt.Fprintf(os.Stderr, "  SERPAPI_KEY, MINIO_ENDPOINT, ... - Optional, enable web search enrichment\n")
		os.Exit(1)
	}

	imagePath := os.Args[1]
	image, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load()
	if cfg.GeminiAPIKey == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY is not set")
		os.Exit(1)
	}

	ctx := context.Background()

	analyzer, err := llm.NewGemini(ctx, cfg.GeminiAPIKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create Gemini client: %v\n", err)
		os.Exit(1)
	}

	var store scan.Store
	var searcher scan.Searcher
	if cfg.Enrichment() {
		s, err := storage.New(ctx, storage.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize object storage: %v\n", err)
			os.Exit(1)
		}
		store = s
		searcher = search.NewLens(search.LensOpts{APIKey: cfg.SerpAPIKey})
	}

	orchestrator := scan.New(analyzer, store, searcher, cfg.VisionTimeout)
	result, err := orchestrator.Scan(ctx, scan.Request{
		Image:     image,
		MediaType: mediaTypeFor(imagePath),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Description:     %v\n", result.Analysis["description"])
	fmt.Printf("Value range:     %v\n", result.Analysis["valueRange"])
	fmt.Printf("Where to trade:  %v\n", result.Analysis["whereToBuySell"])
	fmt.Printf("Background:      %v\n", result.Analysis["backgroundInfo"])

	fmt.Printf("\nWeb matches (%d):\n", len(result.WebResults))
	for _, m := range result.WebResults {
		price := "-"
		if m.Price != nil {
			price = *m.Price
		}
		fmt.Printf("  %-8s %s (%s)\n", price, m.Title, m.Link)
	}
}

func mediaTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
