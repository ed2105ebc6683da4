package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/serownia/internal/protocol"
	"github.com/roach88/serownia/internal/testutil"
)

// cliHarness runs commands against one temporary database.
type cliHarness struct {
	t     *testing.T
	dir   string
	db    string
	clock *testutil.Clock
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	return &cliHarness{
		t:     t,
		dir:   dir,
		db:    filepath.Join(dir, "serownia.db"),
		clock: testutil.Date(2024, time.July, 10),
	}
}

func (h *cliHarness) path(name string) string {
	return filepath.Join(h.dir, name)
}

// exec runs one command with stdin and returns everything written to
// stdout.
func (h *cliHarness) exec(stdin string, args ...string) (string, error) {
	h.t.Helper()
	opts := &RootOptions{
		Clock:      h.clock.Now,
		IDs:        protocol.NewFixedGenerator("save-1"),
		Logger:     zap.NewNop(),
		BcryptCost: bcrypt.MinCost,
	}
	cmd := newRootCommand(opts)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", h.db}, args...))

	err := cmd.Execute()
	return out.String(), err
}

// run executes a command that must succeed.
func (h *cliHarness) run(args ...string) string {
	h.t.Helper()
	out, err := h.exec("", args...)
	require.NoError(h.t, err, "serownia %s\n%s", strings.Join(args, " "), out)
	return out
}

// runJSON executes a command with --format json and decodes the response.
func (h *cliHarness) runJSON(args ...string) (CLIResponse, error) {
	h.t.Helper()
	out, err := h.exec("", append(args, "--format", "json")...)
	var resp CLIResponse
	require.NoError(h.t, json.Unmarshal([]byte(out), &resp), out)
	return resp, err
}

// seedGouda adds a cheese product with a two-line recipe.
func (h *cliHarness) seedGouda() {
	h.t.Helper()
	h.run("additive", "add", "CHN-22", "--category", "Kultury starterowe")
	h.run("additive", "add", "CHY-MAX", "--category", "Podpuszczka")
	h.run("product", "add", "Gouda", "--category", "Ser", "--price", "45,90")
	h.run("recipe", "add", "Gouda", "CHN-22", "2 g")
	h.run("recipe", "add", "Gouda", "CHY-MAX", "3 ml")
}
