package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/nativeextractor/pkg/types"
)

func TestRunMinersList(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	minersFormat = "table"
	require.NoError(t, runMinersList(cmd, nil))

	output := buf.String()
	assert.Contains(t, output, "Library")
	assert.Contains(t, output, "match_glob")
	assert.Contains(t, output, "match_email")
}

func TestRunMinersMetaJSON(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	minersFormat = "json"
	require.NoError(t, runMinersMeta(cmd, []string{"/usr/lib/nativeextractor_miners/network_entities.so"}))

	var meta []types.MinerMeta
	require.NoError(t, json.Unmarshal(buf.Bytes(), &meta))
	require.Len(t, meta, 3)
	assert.Equal(t, "match_ipv4", meta[0].Miner)
	assert.Equal(t, "/usr/lib/nativeextractor_miners/network_entities.so", meta[0].Path)
}

func TestRunMinersMeta_Unknown(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	minersFormat = "table"
	assert.Error(t, runMinersMeta(cmd, []string{"nowhere.so"}))
}

func TestParseMinerFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    types.MinerSpec
		wantErr bool
	}{
		{in: "glob_entities:match_glob", want: types.MinerSpec{Locator: "glob_entities", Symbol: "match_glob"}},
		{in: "glob_entities:match_glob:???", want: types.MinerSpec{Locator: "glob_entities", Symbol: "match_glob", Params: "???"}},
		{in: "regex_entities:match_regex:a:b", want: types.MinerSpec{Locator: "regex_entities", Symbol: "match_regex", Params: "a:b"}},
		{in: `C:\miners\x.yml:match_x:p`, want: types.MinerSpec{Locator: `C:\miners\x.yml`, Symbol: "match_x", Params: "p"}},
		{in: "d:/miners/x.so:match_x", want: types.MinerSpec{Locator: "d:/miners/x.so", Symbol: "match_x"}},
		{in: `C:\miners\x.so`, wantErr: true},
		{in: "glob_entities", wantErr: true},
		{in: ":match_glob", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseMinerFlag(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestResolveMiners(t *testing.T) {
	specs, err := resolveMiners(nil, "")
	require.NoError(t, err)
	assert.Nil(t, specs)

	file := filepath.Join(t.TempDir(), "miners.yml")
	require.NoError(t, os.WriteFile(file, []byte(`miners:
  - locator: web_entities
    symbol: match_email
  - locator: glob_entities
    symbol: match_glob
    params: "????"
`), 0o644))

	specs, err = resolveMiners([]string{"keyword_entities:match_keywords:a,b"}, file)
	require.NoError(t, err)
	assert.Equal(t, []types.MinerSpec{
		{Locator: "keyword_entities", Symbol: "match_keywords", Params: "a,b"},
		{Locator: "web_entities", Symbol: "match_email"},
		{Locator: "glob_entities", Symbol: "match_glob", Params: "????"},
	}, specs)
}

func TestResolveMiners_EmptyFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "miners.yml")
	require.NoError(t, os.WriteFile(file, []byte("miners: []\n"), 0o644))

	_, err := resolveMiners(nil, file)
	assert.Error(t, err)
}
