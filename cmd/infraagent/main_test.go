package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAgent struct {
	got []string
}

func (a *echoAgent) ProcessRequest(_ context.Context, text string, _ int) string {
	a.got = append(a.got, text)
	return "done: " + text
}

func TestRunREPL(t *testing.T) {
	in := strings.NewReader("create bucket logs-01\n\n   \ncheck i-123\nquit\nnever sent\n")
	var out bytes.Buffer
	agent := &echoAgent{}

	require.NoError(t, runREPL(context.Background(), in, &out, agent))

	assert.Equal(t, []string{"create bucket logs-01", "check i-123"}, agent.got)
	assert.Contains(t, out.String(), "Agent: done: create bucket logs-01")
	assert.Contains(t, out.String(), "Agent: done: check i-123")
	assert.Contains(t, out.String(), "Goodbye.")
}

func TestRunREPL_EOF(t *testing.T) {
	agent := &echoAgent{}
	require.NoError(t, runREPL(context.Background(), strings.NewReader("hello"), &bytes.Buffer{}, agent))
	assert.Equal(t, []string{"hello"}, agent.got)
}

func TestIsExit(t *testing.T) {
	for _, w := range []string{"quit", "EXIT", "退出"} {
		assert.True(t, isExit(w), w)
	}
	assert.False(t, isExit("quit now"))
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	configPath, verbose, logFormat, maxIterations = "", false, "", 0
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("INFRA_AGENT_MAX_ITERATIONS", "")

	dir := t.TempDir()
	cfg := filepath.Join(dir, "infraagent.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("llm:\n  provider: mock\nlog:\n  level: error\n"), 0o600))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAskCommand(t *testing.T) {
	out, err := runCLI(t, "", "ask", "create", "a", "bucket")
	require.NoError(t, err)
	assert.Equal(t, "mock provider configured, no model was called.\n", out)
}

func TestChatCommand(t *testing.T) {
	out, err := runCLI(t, "hi\nexit\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Agent: mock provider configured, no model was called.")
}

func TestMaxIterationsFlagValidated(t *testing.T) {
	_, err := runCLI(t, "", "--max-iterations", "99", "ask", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 20")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "infraagent version "))
}
