package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmdesk/crmdesk/internal/cli"
	"github.com/crmdesk/crmdesk/internal/testing/fakecrm"
)

type cliFixture struct {
	api *fakecrm.Server
	dir string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	return &cliFixture{api: fakecrm.New(t), dir: t.TempDir()}
}

func (f *cliFixture) run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := cli.NewRootCommand(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config-dir", f.dir, "--api-url", f.api.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (f *cliFixture) token() string {
	data, err := os.ReadFile(filepath.Join(f.dir, "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func TestLoginStoresToken(t *testing.T) {
	f := newCLIFixture(t)
	f.api.AddUser("Ada", "Lovelace", "ada@example.com", "secret1")

	out, err := f.run("login", "--email", "ada@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ada <ada@example.com>.")
	assert.NotEmpty(t, f.token())

	info, err := os.Stat(filepath.Join(f.dir, "token"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err = f.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace <ada@example.com>\n", out)
}

func TestLoginFailure(t *testing.T) {
	f := newCLIFixture(t)
	f.api.AddUser("Ada", "Lovelace", "ada@example.com", "secret1")

	_, err := f.run("login", "--email", "ada@example.com", "--password", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")
	assert.Empty(t, f.token())
}

func TestCommandsRequireLogin(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run("invoices", "show", "1")
	assert.ErrorIs(t, err, cli.ErrNotLoggedIn)
	assert.Empty(t, f.api.Calls("", "/api/invoices/1"))
}

func TestRejectedTokenIsRemoved(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, cli.NewFileCredentials(f.dir).SetCredential("revoked"))

	_, err := f.run("whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected the stored token")
	assert.Empty(t, f.token())
}

func TestInvoiceShow(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, cli.NewFileCredentials(f.dir).SetCredential(f.api.IssueToken("ada@example.com")))
	id := f.api.Seed("invoices", map[string]any{
		"customer_id":    json.Number("3"),
		"invoice_number": "INV-9",
		"issue_date":     "2024-01-01",
		"due_date":       "2024-02-01",
		"amount_due":     "500.00",
		"status":         "Pending",
	})
	f.api.SeedPayment(id, "120.00", "Cash")

	out, err := f.run("invoices", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "INV-9")
	assert.Contains(t, out, "R500.00")
	assert.Contains(t, out, "R120.00")
	assert.Contains(t, out, "Cash")
	assert.Empty(t, f.api.Calls(http.MethodPut, "/api/invoices/"+id), "show never writes")
}

func TestInvoiceReconcile(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, cli.NewFileCredentials(f.dir).SetCredential(f.api.IssueToken("ada@example.com")))
	id := f.api.Seed("invoices", map[string]any{
		"customer_id":    json.Number("3"),
		"invoice_number": "INV-10",
		"amount_due":     "500.00",
		"status":         "Pending",
	})
	f.api.SeedPayment(id, "100.00", "Cash")

	out, err := f.run("invoices", "reconcile", id)
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged (Pending, paid R100.00 of R500.00)")

	f.api.SeedPayment(id, "400.00", "Card")
	out, err = f.run("invoices", "reconcile", id)
	require.NoError(t, err)
	assert.Contains(t, out, "marked Paid")
	assert.Equal(t, "Paid", f.api.Record("invoices", id)["status"])
}

func TestInvoiceReconcileUnknownAmountDue(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, cli.NewFileCredentials(f.dir).SetCredential(f.api.IssueToken("ada@example.com")))
	id := f.api.Seed("invoices", map[string]any{
		"customer_id":    json.Number("3"),
		"invoice_number": "INV-11",
		"amount_due":     nil,
		"status":         "Pending",
	})

	out, err := f.run("invoices", "reconcile", id)
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged (Pending, amount due unknown)")
	assert.Empty(t, f.api.Calls(http.MethodPut, "/api/invoices/"+id))
}

func TestLogout(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, cli.NewFileCredentials(f.dir).SetCredential("tok"))

	out, err := f.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")
	assert.Empty(t, f.token())
}
