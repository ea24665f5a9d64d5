package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/nativeextractor/pkg/library"
	"github.com/praetorian-inc/nativeextractor/pkg/scanner"
	"github.com/praetorian-inc/nativeextractor/pkg/types"
)

var (
	minersFormat string
)

var minersCmd = &cobra.Command{
	Use:   "miners",
	Short: "Inspect miner libraries",
	Long:  "Commands for listing miner libraries and the symbols they export",
}

var minersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List builtin miner libraries",
	Long:  "Display every symbol of every builtin library with the label it produces",
	Args:  cobra.NoArgs,
	RunE:  runMinersList,
}

var minersMetaCmd = &cobra.Command{
	Use:   "meta <locator>",
	Short: "Describe a miner library",
	Long:  "Display the symbols exported by a builtin library or a YAML library file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMinersMeta,
}

func init() {
	minersCmd.AddCommand(minersListCmd)
	minersCmd.AddCommand(minersMetaCmd)
	minersCmd.PersistentFlags().StringVar(&minersFormat, "format", "table", "Output format: table, json")
}

func runMinersList(cmd *cobra.Command, args []string) error {
	libs, err := library.Default().Builtins()
	if err != nil {
		return fmt.Errorf("loading builtin libraries: %w", err)
	}

	var meta []types.MinerMeta
	for _, lib := range libs {
		meta = append(meta, lib.Meta()...)
	}
	return outputMeta(cmd, meta)
}

func runMinersMeta(cmd *cobra.Command, args []string) error {
	meta, err := library.ExtractMeta(args[0])
	if err != nil {
		return err
	}
	return outputMeta(cmd, meta)
}

// =============================================================================
// HELPERS
// =============================================================================

func outputMeta(cmd *cobra.Command, meta []types.MinerMeta) error {
	switch minersFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(meta)
	case "table":
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintf(w, "Library\tMiner\tLabel\n")
		fmt.Fprintf(w, "-------\t-----\t-----\n")
		for _, m := range meta {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.Path, m.Miner, m.Label)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", minersFormat)
	}
}

// minerSet is the YAML document accepted by --miners-file.
type minerSet struct {
	Miners []types.MinerSpec `yaml:"miners"`
}

// parseMinerFlag parses "locator:symbol[:params]". Params may contain ':'.
// A locator starting with a drive letter (C:\miners\x.so or C:/x.so)
// keeps its drive colon.
func parseMinerFlag(s string) (types.MinerSpec, error) {
	drive := ""
	if hasDrivePrefix(s) {
		drive, s = s[:2], s[2:]
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return types.MinerSpec{}, fmt.Errorf("invalid miner %q: want locator:symbol[:params]", drive+s)
	}
	spec := types.MinerSpec{Locator: drive + parts[0], Symbol: parts[1]}
	if len(parts) == 3 {
		spec.Params = parts[2]
	}
	return spec, nil
}

func hasDrivePrefix(s string) bool {
	if len(s) < 3 || s[1] != ':' || (s[2] != '\\' && s[2] != '/') {
		return false
	}
	c := s[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// resolveMiners combines --miner values and a --miners-file. It returns nil
// when neither is given so the default miners are used.
func resolveMiners(flags []string, file string) ([]types.MinerSpec, error) {
	var specs []types.MinerSpec
	for _, f := range flags {
		spec, err := parseMinerFlag(f)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading miners file: %w", err)
		}
		var set minerSet
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("parsing miners file %s: %w", file, err)
		}
		if len(set.Miners) == 0 {
			return nil, fmt.Errorf("no miners in %s", file)
		}
		specs = append(specs, set.Miners...)
	}
	return specs, nil
}

// newCore builds a scanner.Core and warns about miners that did not load.
func newCore(cfg scanner.Config) (*scanner.Core, error) {
	cfg.Logger = defaultLogger()
	core, err := scanner.NewCore(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Miners != nil && len(core.Miners()) < len(cfg.Miners) {
		fmt.Fprintf(os.Stderr, "[warn] %d of %d miners could not be loaded (use -v for details)\n",
			len(cfg.Miners)-len(core.Miners()), len(cfg.Miners))
	}
	return core, nil
}
