package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the on-disk dataset cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report per-dataset disk usage under the cache root",
	RunE:  runCacheStats,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
}

// datasetUsage is one release/species/assembly directory's footprint on
// disk, reported by walking the cache root directly: the cache holds no
// in-process registry of what's materialized beyond the current process's
// pinned entries, so "stats" always reflects what's actually on disk.
type datasetUsage struct {
	datasetDir string
	bytes      int64
	fileCount  int
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	usages, err := walkCacheRoot(cfg.CacheRoot)
	if err != nil {
		return fmt.Errorf("walk cache root %s: %w", cfg.CacheRoot, err)
	}
	if len(usages) == 0 {
		printInfo("cache root %s is empty", cfg.CacheRoot)
		return nil
	}

	sort.Slice(usages, func(i, j int) bool { return usages[i].datasetDir < usages[j].datasetDir })

	var total int64
	for _, u := range usages {
		printInfo("%-40s %10d bytes  %4d files", u.datasetDir, u.bytes, u.fileCount)
		total += u.bytes
	}
	printInfo("total: %d bytes across %d datasets", total, len(usages))
	return nil
}

// walkCacheRoot groups files by the release/species/assembly path segment
// three levels below root, mirroring publish.ArtifactPaths.DatasetDir's
// layout.
func walkCacheRoot(root string) ([]datasetUsage, error) {
	byDataset := make(map[string]*datasetUsage)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}
		datasetDir := filepath.Join(parts[0], parts[1], parts[2])
		u, ok := byDataset[datasetDir]
		if !ok {
			u = &datasetUsage{datasetDir: datasetDir}
			byDataset[datasetDir] = u
		}
		u.bytes += info.Size()
		u.fileCount++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	out := make([]datasetUsage, 0, len(byDataset))
	for _, u := range byDataset {
		out = append(out, *u)
	}
	return out, nil
}
