// Package main is the entry point for the pubmed CLI: a thin surface over
// the client library with search and fetch subcommands.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/pubmed-client/pkg/cache"
	"github.com/Sternrassler/pubmed-client/pkg/client"
	"github.com/Sternrassler/pubmed-client/pkg/export"
	"github.com/Sternrassler/pubmed-client/pkg/logging"
	"github.com/Sternrassler/pubmed-client/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the pubmed CLI.
var rootCmd = &cobra.Command{
	Use:     "pubmed",
	Short:   "Search and fetch articles from PubMed",
	Version: version,
	Long: `pubmed searches and fetches bibliographic records from the NCBI
E-utilities service. Results print as a short summary by default, or can be
written to CSV or JSON files with --csv / --json.

An NCBI API key (--api-key or PUBMED_API_KEY) raises the permitted request
rate from 3 to 10 requests per second.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.Config{
			Level:  logging.LogLevel(viper.GetString("log_level")),
			Pretty: true,
			Output: os.Stderr,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().String("api-key", "", "NCBI API key for higher rate limits")
	rootCmd.PersistentFlags().String("email", "", "contact email forwarded to NCBI")
	rootCmd.PersistentFlags().String("base-url", "", "alternate E-utilities base URL")
	rootCmd.PersistentFlags().Bool("cache", false, "cache responses in memory for this invocation")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	viper.SetEnvPrefix("PUBMED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for flagName, key := range map[string]string{
		"api-key":   "api_key",
		"email":     "email",
		"base-url":  "base_url",
		"cache":     "cache",
		"log-level": "log_level",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}
}

// newClient builds a client from the resolved flag/env configuration.
func newClient() (*client.Client, error) {
	cfg := client.DefaultConfig()
	cfg.APIKey = viper.GetString("api_key")
	cfg.Email = viper.GetString("email")
	if base := viper.GetString("base_url"); base != "" {
		cfg.BaseURL = base
	}
	if viper.GetBool("cache") {
		cfg.Cache = cache.NewMemoryStore()
	}
	return client.New(cfg)
}

// emit writes articles to the requested file formats, or prints a summary
// when no output file was selected.
func emit(articles []types.Article, csvFile, jsonFile string) error {
	switch {
	case csvFile != "":
		if err := export.SaveCSV(articles, csvFile); err != nil {
			return err
		}
		fmt.Printf("Saved %d articles to %s\n", len(articles), csvFile)
	case jsonFile != "":
		if err := export.SaveJSON(articles, jsonFile); err != nil {
			return err
		}
		fmt.Printf("Saved %d articles to %s\n", len(articles), jsonFile)
	default:
		printSummary(articles)
	}
	return nil
}

// printSummary prints one short block per article.
func printSummary(articles []types.Article) {
	for _, a := range articles {
		title := a.Title
		if len(title) > 80 {
			title = title[:80] + "..."
		}
		fmt.Printf("[%s] %s\n", a.PMID, title)

		if len(a.Authors) > 3 {
			fmt.Printf("  Authors: %s et al. (%d total)\n",
				strings.Join(a.Authors[:3], ", "), len(a.Authors))
		} else if len(a.Authors) > 0 {
			fmt.Printf("  Authors: %s\n", strings.Join(a.Authors, ", "))
		}
		fmt.Println()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
