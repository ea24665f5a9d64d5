package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/nativeextractor/pkg/sarif"
	"github.com/praetorian-inc/nativeextractor/pkg/store"
	"github.com/praetorian-inc/nativeextractor/pkg/types"
)

var (
	reportDatastore string
	reportFormat    string
	reportColor     string
)

// styles holds the color formatters of the human report.
type styles struct {
	streamHeading *color.Color
	id            *color.Color
	label         *color.Color
	heading       *color.Color
	value         *color.Color
	metadata      *color.Color
}

// newStyles creates color formatters for report output.
// enabled=false respects --color=never and the NO_COLOR env var.
func newStyles(enabled bool) *styles {
	s := &styles{
		streamHeading: color.New(color.Bold, color.FgHiWhite),
		id:            color.New(color.FgHiGreen),
		label:         color.New(color.Bold, color.FgHiBlue),
		heading:       color.New(color.Bold),
		value:         color.New(color.FgYellow),
		metadata:      color.New(color.FgHiBlue),
	}

	if !enabled {
		for _, c := range []*color.Color{s.streamHeading, s.id, s.label, s.heading, s.value, s.metadata} {
			c.DisableColor()
		}
	}
	return s
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from mining results",
	Long:  "Read streams and occurrences from a datastore written by mine --output",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "nativeextractor.db", "Path to datastore file")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
}

// streamReport groups the occurrences of one stream.
type streamReport struct {
	BlobID      types.BlobID       `json:"blob_id"`
	Paths       []string           `json:"paths"`
	Occurrences []types.Occurrence `json:"occurrences"`
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDatastore == store.MemoryPath {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if _, err := os.Stat(reportDatastore); err != nil {
		return fmt.Errorf("datastore not found: %s", reportDatastore)
	}

	s, err := store.New(store.Config{Path: reportDatastore})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer s.Close()

	streams, err := loadStreams(s)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(streams)
	case "sarif":
		report := sarif.NewReport()
		for _, st := range streams {
			path := st.BlobID.Hex()
			if len(st.Paths) > 0 {
				path = st.Paths[0]
			}
			for _, occ := range st.Occurrences {
				report.AddRule(types.MinerMeta{Label: occ.Label})
				report.AddResult(occ, path, nil)
			}
		}
		return writeSARIF(cmd, report)
	case "human":
		counts, err := s.LabelCounts()
		if err != nil {
			return fmt.Errorf("counting labels: %w", err)
		}
		return outputReportHuman(cmd.OutOrStdout(), streams, counts)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// loadStreams reads every record and groups it by stream, ordered by the
// first path of each stream.
func loadStreams(s store.Store) ([]*streamReport, error) {
	records, err := s.GetAllRecords()
	if err != nil {
		return nil, fmt.Errorf("retrieving occurrences: %w", err)
	}

	byID := make(map[types.BlobID]*streamReport)
	var streams []*streamReport
	for _, rec := range records {
		st, ok := byID[rec.BlobID]
		if !ok {
			st = &streamReport{BlobID: rec.BlobID}
			provs, err := s.GetProvenance(rec.BlobID)
			if err != nil {
				return nil, fmt.Errorf("retrieving provenance: %w", err)
			}
			for _, p := range provs {
				st.Paths = append(st.Paths, p.Path())
			}
			byID[rec.BlobID] = st
			streams = append(streams, st)
		}
		st.Occurrences = append(st.Occurrences, rec.Occurrence)
	}

	sort.SliceStable(streams, func(i, j int) bool {
		return firstPath(streams[i]) < firstPath(streams[j])
	})
	return streams, nil
}

func firstPath(st *streamReport) string {
	if len(st.Paths) > 0 {
		return st.Paths[0]
	}
	return st.BlobID.Hex()
}

// colorEnabled resolves --color against the terminal and NO_COLOR.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func outputReportHuman(out io.Writer, streams []*streamReport, counts map[string]int) error {
	color.NoColor = !colorEnabled(reportColor)
	s := newStyles(!color.NoColor)

	total := len(streams)
	for i, st := range streams {
		fmt.Fprintf(out, "%s (%s %s)\n",
			s.streamHeading.Sprintf("Stream %d/%d", i+1, total),
			s.heading.Sprint("blob"),
			s.id.Sprint(st.BlobID.Hex()))

		for _, p := range st.Paths {
			fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Path:"), s.metadata.Sprint(p))
		}

		for _, occ := range st.Occurrences {
			fmt.Fprintf(out, "    %s %s %s\n",
				s.label.Sprint(occ.Label),
				s.heading.Sprintf("%d:%d", occ.Pos, occ.Len),
				s.value.Sprint(occ.Value))
		}
		fmt.Fprintf(out, "\n")
	}

	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	fmt.Fprintf(out, "%s\n", s.heading.Sprint("Summary:"))
	for _, l := range labels {
		fmt.Fprintf(out, "    %s %d\n", s.label.Sprint(l), counts[l])
	}
	return nil
}
