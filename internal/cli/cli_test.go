package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("NOTIFY_PROVIDER", "noop")
}

func TestSeedAndReport(t *testing.T) {
	useSQLite(t)

	out, err := runCommand(t, "", "seed", "vouchers", "--prefix", "dog", "--count", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "created 3 vouchers")

	out, err = runCommand(t, "", "seed", "vouchers", "--prefix", "DOG", "--count", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "created 2 vouchers")

	out, err = runCommand(t, "", "seed", "tickets", "--from", "1", "--to", "12")
	require.NoError(t, err)
	assert.Contains(t, out, "created 12 tickets")

	out, err = runCommand(t, "", "tickets", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "12")

	out, err = runCommand(t, "", "seed", "edition", "--name", "Outubro", "--date", "2026-10-17", "--price", "19.99", "--capacity", "300", "--activate")
	require.NoError(t, err)
	assert.Contains(t, out, "Outubro")

	out, err = runCommand(t, "", "editions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Outubro")
	assert.Contains(t, out, "17/10/2026")
	assert.Contains(t, out, "300")
}

func TestSeedEditionRejectsBadPrice(t *testing.T) {
	useSQLite(t)
	_, err := runCommand(t, "", "seed", "edition", "--name", "Outubro", "--date", "2026-10-17", "--price", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--price")
}

func TestMigrateSQLite(t *testing.T) {
	useSQLite(t)
	out, err := runCommand(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "store=sqlite")
}

func TestUnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	_, err := runCommand(t, "", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo")
}

func TestHashPassword(t *testing.T) {
	out, err := runCommand(t, "", "hash-password", "segredo")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("segredo")))

	out, err = runCommand(t, "outro\n", "hash-password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("outro")))

	_, err = runCommand(t, "", "hash-password")
	assert.Error(t, err)
}

func TestJobsCommandWithoutEdition(t *testing.T) {
	useSQLite(t)
	_, err := runCommand(t, "", "jobs")
	require.NoError(t, err)
}
