package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/nativeextractor/pkg/enum"
	"github.com/praetorian-inc/nativeextractor/pkg/extractor"
	"github.com/praetorian-inc/nativeextractor/pkg/sarif"
	"github.com/praetorian-inc/nativeextractor/pkg/scanner"
	"github.com/praetorian-inc/nativeextractor/pkg/store"
)

var (
	mineMiners        []string
	mineMinersFile    string
	mineBatch         int
	mineThreads       int
	mineJobs          int
	mineNoEnclosed    bool
	mineSort          bool
	mineOutputFormat  string
	mineOutputPath    string
	mineIncludeHidden bool
	mineMaxFileSize   int64
	mineExtract       string
	mineGit           bool
)

var mineCmd = &cobra.Command{
	Use:   "mine <target>",
	Short: "Mine a file, directory or git tree",
	Long: `Mine a file, a directory tree or (with --git) the HEAD tree of a git
repository. Without --miner or --miners-file the builtin web and network
entity miners are used.`,
	Args: cobra.ExactArgs(1),
	RunE: runMine,
}

func init() {
	mineCmd.Flags().StringArrayVar(&mineMiners, "miner", nil, "Miner as locator:symbol[:params] (repeatable)")
	mineCmd.Flags().StringVar(&mineMinersFile, "miners-file", "", "YAML file listing miners")
	mineCmd.Flags().IntVar(&mineBatch, "batch", extractor.DefaultBatchSize, "Occurrences pulled per batch")
	mineCmd.Flags().IntVar(&mineThreads, "threads", extractor.DefaultThreads, "Worker goroutines per stream (0 = all CPUs)")
	mineCmd.Flags().IntVar(&mineJobs, "jobs", 4, "Streams mined concurrently")
	mineCmd.Flags().BoolVar(&mineNoEnclosed, "no-enclosed", false, "Drop occurrences enclosed by another occurrence of the same batch")
	mineCmd.Flags().BoolVar(&mineSort, "sort", false, "Sort each batch by position and label")
	mineCmd.Flags().StringVar(&mineOutputFormat, "format", "human", "Output format: human, json, sarif")
	mineCmd.Flags().StringVar(&mineOutputPath, "output", store.MemoryPath, "Output database path")
	mineCmd.Flags().BoolVar(&mineIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	mineCmd.Flags().Int64Var(&mineMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to mine (bytes)")
	mineCmd.Flags().StringVar(&mineExtract, "extract", "", "Extract text from documents and archives: comma-separated extensions (pdf,docx,xlsx,7z,...) or all")
	mineCmd.Flags().BoolVar(&mineGit, "git", false, "Treat target as git repository (mine the HEAD tree)")
}

func runMine(cmd *cobra.Command, args []string) error {
	target := args[0]
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}
	switch mineOutputFormat {
	case "human", "json", "sarif":
	default:
		return fmt.Errorf("unknown output format: %s", mineOutputFormat)
	}

	specs, err := resolveMiners(mineMiners, mineMinersFile)
	if err != nil {
		return err
	}

	s, err := store.New(store.Config{Path: mineOutputPath})
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer s.Close()

	var flags extractor.Flags
	if mineNoEnclosed {
		flags |= extractor.NoEnclosedOccurrences
	}
	if mineSort {
		flags |= extractor.SortResults
	}

	core, err := newCore(scanner.Config{
		Miners:    specs,
		BatchSize: mineBatch,
		Threads:   mineThreads,
		Flags:     flags,
		Store:     s,
	})
	if err != nil {
		return fmt.Errorf("loading miners: %w", err)
	}
	defer core.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mu      sync.Mutex
		results []*scanner.MineResult
	)
	stats, err := core.MineAll(ctx, createEnumerator(target), mineJobs, func(r *scanner.MineResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("mining: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Source < results[j].Source })

	// summary goes to stderr for json/sarif to keep stdout parseable
	summary := cmd.OutOrStdout()
	if mineOutputFormat != "human" {
		summary = cmd.ErrOrStderr()
	}
	fmt.Fprintf(summary, "Mining complete: %d streams, %d occurrences", stats.Streams, stats.Occurrences)
	if stats.Failed > 0 {
		fmt.Fprintf(summary, " (%d streams failed)", stats.Failed)
	}
	fmt.Fprintln(summary)
	if mineOutputPath != store.MemoryPath {
		fmt.Fprintf(summary, "Results stored in: %s\n", mineOutputPath)
	}

	switch mineOutputFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	case "sarif":
		report := sarif.NewReport()
		for _, m := range core.Meta() {
			report.AddRule(m)
		}
		for _, r := range results {
			for _, occ := range r.Occurrences {
				report.AddResult(occ, r.Source, nil)
			}
		}
		return writeSARIF(cmd, report)
	default:
		return outputResultsHuman(cmd, results)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func createEnumerator(target string) enum.Enumerator {
	config := enum.Config{
		Root:            target,
		IncludeHidden:   mineIncludeHidden,
		MaxFileSize:     mineMaxFileSize,
		ExtractArchives: mineExtract,
		Readers:         mineJobs,
	}
	if mineGit {
		return enum.NewGitEnumerator(config)
	}
	return enum.NewFilesystemEnumerator(config)
}

func outputResultsHuman(cmd *cobra.Command, results []*scanner.MineResult) error {
	out := cmd.OutOrStdout()
	for _, r := range results {
		if len(r.Occurrences) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", r.Source)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, occ := range r.Occurrences {
			fmt.Fprintf(w, "  %s\t%d:%d\t%s\n", occ.Label, occ.Pos, occ.Len, occ.Value)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func writeSARIF(cmd *cobra.Command, report *sarif.Report) error {
	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(jsonBytes); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}
