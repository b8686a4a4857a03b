package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/constants"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
	"github.com/mrz1836/foreman/internal/flock"
	"github.com/mrz1836/foreman/internal/registry"
	"github.com/mrz1836/foreman/internal/testutil"
)

func setupTestHome(t *testing.T) string {
	t.Helper()
	return testutil.TempHome(t)
}

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is success", nil, ExitSuccess},
		{"dependency failure", foremanerrors.Wrap(foremanerrors.ErrDependencyUnavailable, "boot"), ExitDependencyFailure},
		{"already running", foremanerrors.ErrAlreadyRunning, ExitAlreadyRunning},
		{"unknown agent", foremanerrors.Wrap(foremanerrors.ErrUnknownAgent, "heartbeat"), ExitUnknownAgent},
		{"generic error", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeForError(tt.err))
		})
	}
}

func TestIsValidOutputFormat(t *testing.T) {
	assert.True(t, IsValidOutputFormat(OutputText))
	assert.True(t, IsValidOutputFormat(OutputJSON))
	assert.False(t, IsValidOutputFormat("xml"))
	assert.False(t, IsValidOutputFormat(""))
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev (commit: none, built: unknown)", formatVersion(BuildInfo{}))
	assert.Equal(t, "1.2.3 (commit: abc, built: today)", formatVersion(BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"}))
}

func TestRootCommand_InvalidOutputFormat(t *testing.T) {
	setupTestHome(t)
	flags := &GlobalFlags{}
	cmd := newRootCmd(flags, BuildInfo{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--output", "xml"})

	err := cmd.ExecuteContext(context.Background())
	require.ErrorIs(t, err, foremanerrors.ErrInvalidOutputFormat)
}

func TestRunSubmit(t *testing.T) {
	home := setupTestHome(t)
	ctx := context.Background()

	t.Run("queued with no agents", func(t *testing.T) {
		var buf bytes.Buffer
		err := runSubmit(ctx, &buf, OutputJSON, &submitFlags{id: "t1", taskType: "security", priority: 1})
		require.NoError(t, err)

		var result domain.DispatchResult
		require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
		assert.Equal(t, domain.DispatchQueued, result.Status)
	})

	t.Run("assigned once an agent matches", func(t *testing.T) {
		r, err := registry.NewFileRegistry(config.RegistryPath(home), nil)
		require.NoError(t, err)
		_, err = r.Register(ctx, "sec1", []string{"security"})
		require.NoError(t, err)

		var buf bytes.Buffer
		err = runSubmit(ctx, &buf, OutputJSON, &submitFlags{id: "t2", taskType: "security"})
		require.NoError(t, err)

		var result domain.DispatchResult
		require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
		assert.Equal(t, domain.DispatchAssigned, result.Status)
		assert.Equal(t, "sec1", result.Agent)
	})

	t.Run("duplicate id fails", func(t *testing.T) {
		var buf bytes.Buffer
		err := runSubmit(ctx, &buf, OutputText, &submitFlags{id: "t1", taskType: "security"})
		require.ErrorIs(t, err, foremanerrors.ErrDuplicateTask)
	})
}

func TestRunStatus(t *testing.T) {
	setupTestHome(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, runSubmit(ctx, &buf, OutputText, &submitFlags{id: "t1", taskType: "testing"}))

	buf.Reset()
	require.NoError(t, runStatus(ctx, &buf, OutputJSON))

	var snapshot statusSnapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &snapshot))
	assert.Equal(t, 1, snapshot.Tasks["queued"])

	buf.Reset()
	require.NoError(t, runStatus(ctx, &buf, OutputText))
	assert.Contains(t, buf.String(), "queued")
}

func TestRunAgents(t *testing.T) {
	home := setupTestHome(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, runAgents(ctx, &buf, OutputText))
	assert.Contains(t, buf.String(), "no agents registered")

	r, err := registry.NewFileRegistry(config.RegistryPath(home), nil)
	require.NoError(t, err)
	_, err = r.Register(ctx, "tester1", []string{"testing"})
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, runAgents(ctx, &buf, OutputText))
	assert.Contains(t, buf.String(), "tester1")
	assert.Contains(t, buf.String(), "testing")
}

func TestRunBridge(t *testing.T) {
	setupTestHome(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "assignments.json")
	content := []byte(`[
		{"id": "41", "file": "auth.go", "line": 10, "text": "add tests", "agent": "testing_agent"},
		{"id": "42", "file": "auth.go", "line": 20, "text": "audit", "agent": "security_agent"}
	]`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	var buf bytes.Buffer
	require.NoError(t, runBridge(ctx, &buf, path))
	assert.Contains(t, buf.String(), "ingested 2, skipped 0")

	// Second run over the same file is a no-op.
	buf.Reset()
	require.NoError(t, runBridge(ctx, &buf, path))
	assert.Contains(t, buf.String(), "ingested 0, skipped 2")

	t.Run("missing file", func(t *testing.T) {
		err := runBridge(ctx, &buf, filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})
}

func TestRunCheck(t *testing.T) {
	home := setupTestHome(t)
	ctx := context.Background()

	t.Run("no manifest", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, runCheck(ctx, &buf, OutputText))
		assert.Contains(t, buf.String(), "nothing to check")
	})

	t.Run("required failure maps to exit code 2", func(t *testing.T) {
		manifest := []byte("checks:\n  - name: ghost\n    kind: executable\n    target: definitely-not-a-real-binary-xyz\n    required: true\n")
		require.NoError(t, os.WriteFile(filepath.Join(home, constants.DepsManifestFileName), manifest, 0o600))

		var buf bytes.Buffer
		err := runCheck(ctx, &buf, OutputText)
		require.ErrorIs(t, err, foremanerrors.ErrDependencyUnavailable)
		assert.Equal(t, ExitDependencyFailure, ExitCodeForError(err))
		assert.Contains(t, buf.String(), "FAIL")
	})
}

func TestRunStartAgent_UnknownAgent(t *testing.T) {
	home := setupTestHome(t)
	ctx := context.Background()

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	// No pool file at all: every name is unknown.
	err := runStartAgent(ctx, cmd, "ghost")
	require.ErrorIs(t, err, foremanerrors.ErrUnknownAgent)
	assert.Equal(t, ExitUnknownAgent, ExitCodeForError(err))

	// A pool that does not contain the name behaves the same.
	pool := []byte("agents:\n  - name: testing1\n    capabilities: [testing]\n    exec: x\n")
	require.NoError(t, os.WriteFile(filepath.Join(home, constants.PoolFileName), pool, 0o600))
	err = runStartAgent(ctx, cmd, "ghost")
	require.ErrorIs(t, err, foremanerrors.ErrUnknownAgent)
}

func TestRunStopAgent_NotRunning(t *testing.T) {
	setupTestHome(t)

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := runStopAgent(context.Background(), cmd, "testing1")
	require.ErrorIs(t, err, foremanerrors.ErrNotRunning)
}

func TestPidLockHeld(t *testing.T) {
	home := setupTestHome(t)
	pidPath := config.PidFilePath(home)

	assert.False(t, pidLockHeld(pidPath), "missing pidfile means no daemon")

	f, err := acquirePidFile(pidPath)
	require.NoError(t, err)
	defer func() { _ = flock.Release(f) }()

	pid, err := readPidFile(pidPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
