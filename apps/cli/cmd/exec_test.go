package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/restexec/packages/core/runner"
	"github.com/abdul-hamid-achik/restexec/packages/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"a.yaml", "nested/b.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("requests: []\n"), 0o644))
	}

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "nested", "b.yml")}, files)

	files, err = collectFiles([]string{filepath.Join(dir, "notes.txt")})
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = collectFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestExitCodeFor(t *testing.T) {
	execErr := &rest.Error{Op: "execute", Kind: rest.KindExecution, Err: errors.New("refused")}

	assert.Equal(t, ExitSuccess, exitCodeFor(&runner.RunResult{Results: []*runner.RequestResult{
		{Passed: true}, {Skipped: true},
	}}))
	assert.Equal(t, ExitTestFailure, exitCodeFor(&runner.RunResult{Results: []*runner.RequestResult{
		{Passed: true}, {Passed: false},
	}}))
	assert.Equal(t, ExitNetworkError, exitCodeFor(&runner.RunResult{Results: []*runner.RequestResult{
		{Passed: false}, {Error: execErr},
	}}))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitParseError, exitCode(withExitCode(ExitParseError, errors.New("bad"))))
	assert.Equal(t, ExitUsageError, exitCode(errors.New("unknown flag")))
}

func TestLoadExecConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restexec.config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"baseUrl": "http://file", "headers": {"Accept": "text/plain"}}`), 0o644))

	configFlag, baseURLFlag, timeoutFlag = path, "http://flag", "2s"
	headerFlags = []string{"X-Api-Key: secret", "Accept: application/json"}
	insecureFlag = true
	t.Cleanup(func() {
		configFlag, baseURLFlag, timeoutFlag = "", "", ""
		headerFlags = nil
		insecureFlag = false
	})

	cfg, err := loadExecConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://flag", cfg.BaseURL)
	assert.Equal(t, 2000, cfg.Timeout)
	assert.False(t, cfg.GetValidateSSL())
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Api-Key": "secret"}, cfg.Headers)

	client, err := newClient(cfg, newLogger(os.Stderr))
	require.NoError(t, err)
	assert.Equal(t, "http://flag", client.BaseURL())
}

func TestLoadExecConfig_Errors(t *testing.T) {
	t.Cleanup(func() {
		timeoutFlag = ""
		headerFlags = nil
		configFlag = ""
	})

	configFlag = filepath.Join(t.TempDir(), "missing.json")
	_, err := loadExecConfig()
	assert.Error(t, err)

	configFlag = ""
	timeoutFlag = "soon"
	_, err = loadExecConfig()
	assert.ErrorContains(t, err, "invalid timeout")

	timeoutFlag = ""
	headerFlags = []string{"no-colon"}
	_, err = loadExecConfig()
	assert.ErrorContains(t, err, "invalid header")
}
