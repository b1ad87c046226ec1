// Command atlasctl is a thin operator harness around the engine: it has no
// logic of its own beyond flag parsing and wiring into internal/engine,
// internal/cache, and internal/query. Grounded on srake's cmd/srake
// (one subcommand file per verb, global flags on the root command).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bijux/atlas-engine/internal/config"
)

var (
	configPath string
	cacheRoot  string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "atlasctl",
	Short: "Operator harness for the genome annotation atlas engine",
	Long: `atlasctl drives the ingest pipeline, runs ad hoc gene/transcript
queries against a published dataset, and reports dataset cache stats.`,
	Example: `  # Publish a dataset from a feature table and length index
  atlasctl ingest --dataset 110/homo_sapiens/GRCh38 --features genes.gff3 --fai genome.fa.fai

  # Look up a gene by id
  atlasctl query gene --dataset 110/homo_sapiens/GRCh38 --gene-id ENSG001

  # List a gene's transcripts
  atlasctl query transcript --dataset 110/homo_sapiens/GRCh38 --parent-gene-id ENSG001

  # Show cache occupancy
  atlasctl cache stats`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to atlas.yaml (default: "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&cacheRoot, "cache-root", "", "Override the configured cache root")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(cacheCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cacheRoot != "" {
		cfg.CacheRoot = cacheRoot
	}
	return cfg, nil
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

func printErr(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
