package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/echoVic/aidayhot-crawler/internal/config"
	"github.com/echoVic/aidayhot-crawler/internal/database"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/pipeline"
	"github.com/echoVic/aidayhot-crawler/internal/report"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "aidayhot",
	Short:   "Daily AI content aggregator",
	Long:    "aidayhot crawls AI content from arXiv, GitHub, RSS feeds, Stack Overflow and the web into a local article store.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(crawlCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("aidayhot", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/aidayhot/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, feeds, and API keys.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show article store status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		total, err := db.CountArticles(ctx)
		if err != nil {
			return fmt.Errorf("counting articles: %w", err)
		}
		bySource, err := db.CountBySource(ctx)
		if err != nil {
			return fmt.Errorf("counting by source: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Printf("Articles: %d\n", total)
		for _, st := range model.AllSources() {
			if n, ok := bySource[string(st)]; ok {
				fmt.Printf("  %-18s %d\n", st, n)
			}
		}

		if latest, err := db.LatestPublishTime(ctx); err == nil && !latest.IsZero() {
			fmt.Printf("Newest publish time: %s\n", latest.Format(time.RFC3339))
		}

		lastRun, err := db.GetLastRun(ctx)
		if err != nil {
			return fmt.Errorf("reading last run: %w", err)
		}
		if lastRun == nil {
			fmt.Println("\nNo crawl runs recorded yet.")
			return nil
		}
		fmt.Printf("\nLast run: %s\n", lastRun.StartedAt)
		fmt.Printf("  fetched %d, saved %d, errors %d\n",
			lastRun.Total, lastRun.Success, lastRun.Errors)
		return nil
	},
}

// --- crawl command ---

var (
	crawlSources  string
	maxResults    int
	timeoutSecs   int
	uniformConfig bool
	failFast      bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl configured sources and upsert articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := parseSources(crawlSources)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db, sources)
		if err != nil {
			return err
		}

		opts := pipeline.Options{
			MaxResults:    maxResults,
			UniformConfig: uniformConfig,
			Timeout:       time.Duration(timeoutSecs) * time.Second,
			Verbose:       verbose,
			FailFast:      failFast,
		}

		stats, runErr := pipe.Run(context.Background(), opts)

		// The summary prints even when the run failed.
		fmt.Print(report.Summary(stats))

		if path, err := report.WriteArtifacts(cfg.GetDataDir(), stats); err != nil {
			log.Printf("writing report: %v", err)
		} else {
			fmt.Printf("\nReport: %s\n", path)
		}

		return runErr
	},
}

func init() {
	crawlCmd.Flags().StringVar(&crawlSources, "sources", "all", "Comma-separated sources to crawl, or 'all'")
	crawlCmd.Flags().IntVar(&maxResults, "max-results", 0, "Override per-source result quotas")
	crawlCmd.Flags().IntVar(&timeoutSecs, "timeout", 300, "Global crawl budget in seconds")
	crawlCmd.Flags().BoolVar(&uniformConfig, "uniform-config", false, "Use one quota for every source instead of per-source tuning")
	crawlCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort the run on the first source failure")
}

// parseSources turns the --sources flag into source types. "all" or empty
// defers to the config's active sources.
func parseSources(flag string) ([]model.SourceType, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" || flag == "all" {
		return nil, nil
	}

	var sources []model.SourceType
	for _, name := range strings.Split(flag, ",") {
		st, err := model.ParseSourceType(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		sources = append(sources, st)
	}
	return sources, nil
}

func openDB() (*database.DB, error) {
	dbPath := filepath.Join(cfg.GetDataDir(), "aidayhot.db")
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
