package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logpkg "github.com/screa/powminer/internal/logger"
	"github.com/screa/powminer/pkg/miner"
	"github.com/screa/powminer/pkg/solver"
	"github.com/screa/powminer/pkg/types"
)

var consoleHash = "0x" + strings.Repeat("cd", 32)

func kind(k types.MessageKind) *types.MessageKind { return &k }

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    string
		kind    *types.MessageKind
		wantErr bool
	}{
		{name: "empty", line: "   "},
		{name: "work", line: "work " + consoleHash + " 0xffff", want: "work", kind: kind(types.MsgNewWork)},
		{name: "diff", line: "diff " + consoleHash + " 1000", want: "work", kind: kind(types.MsgNewWork)},
		{name: "start", line: "START", want: "start", kind: kind(types.MsgStart)},
		{name: "stop", line: "stop", want: "stop", kind: kind(types.MsgStop)},
		{name: "status", line: "status", want: "status"},
		{name: "quit", line: "quit", want: "quit"},
		{name: "missing target", line: "work " + consoleHash, wantErr: true},
		{name: "zero target", line: "work " + consoleHash + " 0x0", wantErr: true},
		{name: "bad hash", line: "work 0x1234 0xff", wantErr: true},
		{name: "bad difficulty", line: "diff " + consoleHash + " lots", wantErr: true},
		{name: "quit with args", line: "quit now", wantErr: true},
		{name: "unknown", line: "mine harder", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := parseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.name)
			if tt.kind == nil {
				assert.Nil(t, cmd.msg)
				return
			}
			require.NotNil(t, cmd.msg)
			assert.Equal(t, *tt.kind, cmd.msg.Kind)
		})
	}
}

func TestParseWorkCommand(t *testing.T) {
	cmd, err := parseCommand("diff " + consoleHash + " 1")
	require.NoError(t, err)
	require.NotNil(t, cmd.msg.Work)
	assert.Equal(t, common.HexToHash(consoleHash), cmd.msg.Work.PowHash)
	assert.True(t, cmd.msg.Work.Target.Equal(types.MaxTarget()))
}

func TestRunConsole(t *testing.T) {
	d := miner.NewDispatcher(8)
	inbox, err := d.Subscribe()
	require.NoError(t, err)

	input := strings.Join([]string{
		"work " + consoleHash + " 0xffff",
		"bogus",
		"stop",
		"status",
		"start",
		"quit",
		"stop",
	}, "\n")

	require.NoError(t, runConsole(context.Background(), strings.NewReader(input), d, logpkg.NewNop()))

	assert.Equal(t, types.MsgNewWork, (<-inbox).Kind)
	assert.Equal(t, types.MsgStop, (<-inbox).Kind)
	assert.Equal(t, types.MsgStart, (<-inbox).Kind)
	assert.Empty(t, inbox, "nothing is read after quit")

	snap := d.Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, uint64(3), snap.Version)
}

func TestRunConsoleEOF(t *testing.T) {
	d := miner.NewDispatcher(8)
	require.NoError(t, runConsole(context.Background(), strings.NewReader("stop\n"), d, logpkg.NewNop()))
	assert.False(t, d.Snapshot().Running)
}

func TestRunConsoleClosedDispatcher(t *testing.T) {
	d := miner.NewDispatcher(8)
	d.Close()
	assert.NoError(t, runConsole(context.Background(), strings.NewReader("start\nstop\n"), d, logpkg.NewNop()))
}

func TestPrintCPUInfo(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printCPUInfo(cmd, solver.CPUInfo{
		Brand:        "Test CPU",
		LogicalCores: 8,
		Features:     []string{"AVX2", "SSE4"},
		Detected:     types.ArchVector256,
	})

	out := buf.String()
	assert.Contains(t, out, "CPU: Test CPU")
	assert.Contains(t, out, "Logical cores: 8")
	assert.Contains(t, out, "Features: AVX2 SSE4")
	assert.Contains(t, out, "Architecture: avx2 (4 lanes)")
}
