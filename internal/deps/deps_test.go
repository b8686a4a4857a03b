package deps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/foreman/internal/config"
	"github.com/mrz1836/foreman/internal/domain"
	foremanerrors "github.com/mrz1836/foreman/internal/errors"
)

// testDepsConfig keeps probe timeouts short.
func testDepsConfig() config.DepsConfig {
	return config.DepsConfig{
		RecheckInterval: time.Minute,
		HealthTimeout:   2 * time.Second,
	}
}

func newTestManager(checks []domain.Check) *Manager {
	return NewManager(checks, testDepsConfig(), zerolog.Nop())
}

func TestLoadManifest(t *testing.T) {
	t.Run("missing file is empty, not an error", func(t *testing.T) {
		checks, err := LoadManifest(filepath.Join(t.TempDir(), "deps.yaml"))
		require.NoError(t, err)
		assert.Empty(t, checks)
	})

	t.Run("parses checks", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deps.yaml")
		content := []byte(`
checks:
  - name: git
    kind: executable
    target: git
    required: true
  - name: control_api
    kind: service
    target: http://127.0.0.1:5005/health
    required: false
  - name: workdir
    kind: writable_dir
    target: /tmp/foreman
    required: true
`)
		require.NoError(t, os.WriteFile(path, content, 0o600))

		checks, err := LoadManifest(path)
		require.NoError(t, err)
		require.Len(t, checks, 3)
		assert.Equal(t, domain.CheckKindExecutable, checks[0].Kind)
		assert.True(t, checks[0].Required)
		assert.False(t, checks[1].Required)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deps.yaml")
		require.NoError(t, os.WriteFile(path, []byte("checks: {nope"), 0o600))
		_, err := LoadManifest(path)
		require.ErrorIs(t, err, foremanerrors.ErrManifestInvalid)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deps.yaml")
		require.NoError(t, os.WriteFile(path, []byte("checks:\n  - name: x\n    kind: quantum\n    target: y\n"), 0o600))
		_, err := LoadManifest(path)
		require.ErrorIs(t, err, foremanerrors.ErrManifestInvalid)
	})

	t.Run("rejects missing target", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deps.yaml")
		require.NoError(t, os.WriteFile(path, []byte("checks:\n  - name: x\n    kind: executable\n"), 0o600))
		_, err := LoadManifest(path)
		require.ErrorIs(t, err, foremanerrors.ErrManifestInvalid)
	})
}

func TestManager_RunChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("executable present and missing", func(t *testing.T) {
		m := newTestManager([]domain.Check{
			{Name: "shell", Kind: domain.CheckKindExecutable, Target: "sh", Required: true},
			{Name: "ghost", Kind: domain.CheckKindExecutable, Target: "definitely-not-a-real-binary-xyz", Required: false},
		})
		report, err := m.RunChecks(ctx)
		require.NoError(t, err)
		require.Len(t, report.Results, 2)
		assert.True(t, report.Results[0].Passed)
		assert.False(t, report.Results[1].Passed)
		assert.True(t, report.Ok(), "optional failures do not fail the report")
	})

	t.Run("service reachable and failing", func(t *testing.T) {
		healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer healthy.Close()
		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer broken.Close()

		m := newTestManager([]domain.Check{
			{Name: "up", Kind: domain.CheckKindService, Target: healthy.URL, Required: true},
			{Name: "down", Kind: domain.CheckKindService, Target: broken.URL, Required: true},
		})
		report, err := m.RunChecks(ctx)
		require.NoError(t, err)
		assert.True(t, report.Results[0].Passed)
		assert.False(t, report.Results[1].Passed)
		assert.False(t, report.Ok())
	})

	t.Run("writable dir", func(t *testing.T) {
		m := newTestManager([]domain.Check{
			{Name: "workdir", Kind: domain.CheckKindWritableDir, Target: filepath.Join(t.TempDir(), "work"), Required: true},
		})
		report, err := m.RunChecks(ctx)
		require.NoError(t, err)
		assert.True(t, report.Results[0].Passed)
	})
}

func TestManager_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("required failure blocks", func(t *testing.T) {
		m := newTestManager([]domain.Check{
			{Name: "ghost", Kind: domain.CheckKindExecutable, Target: "definitely-not-a-real-binary-xyz", Required: true},
		})
		report, err := m.Verify(ctx)
		require.ErrorIs(t, err, foremanerrors.ErrDependencyUnavailable)
		require.NotNil(t, report, "the report is still complete on failure")
		assert.Len(t, report.FailedRequired(), 1)
	})

	t.Run("optional failure passes", func(t *testing.T) {
		m := newTestManager([]domain.Check{
			{Name: "ghost", Kind: domain.CheckKindExecutable, Target: "definitely-not-a-real-binary-xyz", Required: false},
		})
		_, err := m.Verify(ctx)
		require.NoError(t, err)
	})
}

func TestManager_Gate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager([]domain.Check{
		{Name: "ghost", Kind: domain.CheckKindExecutable, Target: "definitely-not-a-real-binary-xyz", Required: true},
	})

	// No report yet: the gate stays open.
	require.NoError(t, m.Gate())

	_, err := m.RunChecks(ctx)
	require.NoError(t, err)
	require.Error(t, m.Gate())
	assert.ErrorIs(t, m.Gate(), foremanerrors.ErrDependencyUnavailable)
}
