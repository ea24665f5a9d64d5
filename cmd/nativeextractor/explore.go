package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/nativeextractor/pkg/explore"
)

var exploreDatastore string

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Interactively explore mining results",
	Long: `Launch an interactive TUI to browse occurrences from a datastore written by mine --output.

Features:
  - Filters by label and provenance kind
  - Occurrence table sortable by path, label, value and probability
  - Vi-style navigation (jk, Ctrl-f/b, g/G)`,
	Args: cobra.NoArgs,
	RunE: runExplore,
}

func init() {
	exploreCmd.Flags().StringVar(&exploreDatastore, "datastore", "nativeextractor.db", "Path to datastore file")
}

func runExplore(cmd *cobra.Command, args []string) error {
	model, err := explore.New(exploreDatastore)
	if err != nil {
		return fmt.Errorf("loading datastore: %w", err)
	}
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running explore TUI: %w", err)
	}
	return nil
}
