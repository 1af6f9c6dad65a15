// Package main is the Kensaku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kensaku-io/kensaku/internal/config"
	"github.com/kensaku-io/kensaku/internal/index"
	"github.com/kensaku-io/kensaku/internal/metrics"
	"github.com/kensaku-io/kensaku/internal/models"
	"github.com/kensaku-io/kensaku/internal/nlquery"
	"github.com/kensaku-io/kensaku/internal/query"
	"github.com/kensaku-io/kensaku/internal/ranking"
	"github.com/kensaku-io/kensaku/internal/search"
	"github.com/kensaku-io/kensaku/internal/server"
	"github.com/kensaku-io/kensaku/internal/storage"
	"github.com/kensaku-io/kensaku/internal/suggest"
	"github.com/kensaku-io/kensaku/internal/template"
	"github.com/kensaku-io/kensaku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kensaku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "ingest":
		runIngest()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kensaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, metrics.NewRecorder())
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Engine, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.SnapshotPath != "" {
		if err := components.Index.Save(cfg.Storage.SnapshotPath); err != nil {
			logger.Warn("snapshot save failed",
				zap.String("path", cfg.Storage.SnapshotPath), zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8750", "server URL (empty = direct storage)")
	mode := fs.String("mode", "auto", "query interpretation: auto, nl, or boolean")
	page := fs.Int("page", 1, "result page (1-based)")
	pageSize := fs.Int("page-size", 0, "results per page (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku search [flags] <query>")
		os.Exit(1)
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		fmt.Println("Usage: kensaku search [flags] <query>")
		os.Exit(1)
	}

	req := map[string]interface{}{
		"query":     queryStr,
		"mode":      *mode,
		"page":      *page,
		"page_size": *pageSize,
	}

	var results *models.SearchResults
	if *serverURL != "" {
		res, err := searchViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		results = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		components, err := initializeComponents(cfg, logger, nil)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()

		results, err = components.Engine.Search(
			context.Background(), queryStr, search.Mode(*mode), *page, *pageSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		printResults(results)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func printResults(results *models.SearchResults) {
	if results.Degraded {
		fmt.Println("# warning: index is running degraded (failed snapshot restore)")
	}
	fmt.Printf("%d result(s) in %.1fms\n", results.TotalCount, results.ElapsedMs)
	for _, item := range results.Items {
		title := item.Title
		if title == "" {
			title = item.RecordID
		}
		fmt.Printf("%3d. [%s] %s (score %.3f)\n", item.Rank, item.FileType, utils.Truncate(title, 70), item.Score)
		if item.Path != "" {
			fmt.Printf("     %s\n", item.Path)
		}
	}
	if len(results.Suggestions) > 0 {
		fmt.Printf("Did you mean: %s\n", strings.Join(results.Suggestions, ", "))
	}
}

func searchViaHTTP(serverURL string, req map[string]interface{}) (*models.SearchResults, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var results models.SearchResults
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &results, nil
}

// runIngest reads one or more records from a JSON file (a single object or an
// array) and submits them to the running server.
func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8750", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku ingest [flags] <records.json>")
		os.Exit(1)
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Printf("Failed to read file: %v\n", err)
		os.Exit(1)
	}

	var records []models.MediaRecord
	if err := json.Unmarshal(data, &records); err != nil {
		var single models.MediaRecord
		if err := json.Unmarshal(data, &single); err != nil {
			fmt.Printf("Failed to parse records: %v\n", err)
			os.Exit(1)
		}
		records = []models.MediaRecord{single}
	}

	for _, rec := range records {
		body, _ := json.Marshal(rec)
		resp, err := http.Post(*serverURL+"/api/v1/records", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			fmt.Printf("Ingest failed for %s (%d): %s\n", rec.ID, resp.StatusCode, string(b))
			os.Exit(1)
		}
		resp.Body.Close()
	}
	fmt.Printf("Ingested %d record(s)\n", len(records))
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8750", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku delete [flags] <record-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/records/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Printf("Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Record deleted: %s\n", id)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8750", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var status struct {
		Stats          search.Stats           `json:"stats"`
		Templates      int                    `json:"templates"`
		DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
		Config         map[string]interface{} `json:"config,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("indexed_records:    %d\n", status.Stats.IndexedRecords)
		fmt.Printf("total_searches:     %d\n", status.Stats.TotalSearches)
		fmt.Printf("natural_searches:   %d\n", status.Stats.NaturalSearches)
		fmt.Printf("boolean_searches:   %d\n", status.Stats.BooleanSearches)
		fmt.Printf("templates:          %d\n", status.Templates)
		if status.Stats.IndexDegraded {
			fmt.Println("index_degraded:     true   # snapshot restore failed, reingest recommended")
		}
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage   *storage.SQLiteStorage
	Index     *index.Index
	Suggester *suggest.Suggester
	Engine    *search.Engine
}

func (c *Components) Close() {
	if c.Suggester != nil {
		c.Suggester.Close()
	}
	if c.Index != nil {
		c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, observer search.Observer) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	lexer := query.NewLexer(cfg.Search.NGramMin, cfg.Search.NGramMax)
	idx := index.New(lexer, logger)
	if cfg.Storage.SnapshotPath != "" {
		if restoreErr := idx.Restore(cfg.Storage.SnapshotPath); restoreErr != nil {
			if !errors.Is(restoreErr, os.ErrNotExist) {
				logger.Warn("snapshot restore failed, starting with an empty index",
					zap.String("path", cfg.Storage.SnapshotPath), zap.Error(restoreErr))
			}
		}
	}

	translator := nlquery.NewTranslator(nil, lexer)

	rankCfg := ranking.DefaultConfig()
	if cfg.Search.RecencyHalfLifeDays > 0 {
		rankCfg.RecencyHalfLifeDays = cfg.Search.RecencyHalfLifeDays
	}
	ranker := ranking.NewRanker(rankCfg)

	templates := template.NewStore(store, logger)
	suggester := suggest.New(nlquery.Vocabulary(), cfg.Suggest.MaxSuggestions, cfg.Suggest.HistorySize, store, logger)

	engine := search.NewEngine(cfg, logger, idx, lexer, translator, ranker, templates, suggester, observer)

	return &Components{
		Storage:   store,
		Index:     idx,
		Suggester: suggester,
		Engine:    engine,
	}, nil
}

func printUsage() {
	fmt.Println(`kensaku - media metadata query engine

Usage:
  kensaku server [flags]           Start the HTTP server
  kensaku search [flags] <query>   Search indexed media records
  kensaku ingest [flags] <file>    Ingest records from a JSON file
  kensaku delete [flags] <id>      Delete a record
  kensaku status [flags]           Show engine status
  kensaku version                  Show version
  kensaku help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kensaku/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8750). Use empty (--server "") for direct storage.
  --mode string      Query interpretation: auto, nl, or boolean (default: auto)
  --page int         Result page, 1-based (default: 1)
  --page-size int    Results per page (0 = server default)
  --output string    Output format: text or json (default: text)

Ingest/Delete/Status Flags:
  --server string    Server URL (default: http://localhost:8750)

Examples:
  kensaku server
  kensaku search "happy taipei photos from last week"
  kensaku search --mode boolean 'taipei AND (mood:happy OR mood:calm) NOT rain'
  kensaku search --mode boolean "size:>1048576"
  kensaku ingest records.json
  kensaku delete media-123
  kensaku status --output json`)
}
