package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvtable/internal/core"
	"github.com/JonMunkholm/csvtable/internal/export"
)

// resetFlags restores every flag of cmd and its children to its default,
// since cobra keeps parsed values between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil) //nolint:errcheck
		} else {
			f.Value.Set(f.DefValue) //nolint:errcheck
		}
		f.Changed = false
	}
	for _, c := range append([]*cobra.Command{cmd}, cmd.Commands()...) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--env-file", ""}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.ReplaceAll(string(data), "\r\n", "\n")
}

const peopleCSV = "id;name;city\n1;ann;oslo\n2;bob;\n3;cid;rome\n"

func TestLoadCommand(t *testing.T) {
	in := writeFile(t, t.TempDir(), "people.csv", peopleCSV)

	out, _, err := run(t, "load", "-n", "2", "--infer-types", in)
	require.NoError(t, err)

	assert.Contains(t, out, "people.csv")
	assert.Contains(t, out, "rows: 3, columns: 3")
	assert.Contains(t, out, "ann")
	assert.Contains(t, out, "int")
	assert.NotContains(t, out, "cid")
	assert.Contains(t, out, "showing the first 2 of 3 rows")
}

func TestLoadCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := run(t, "load", filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))

	_, _, err = run(t, "load", "a.csv", "b.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUsage))
	assert.Equal(t, 2, ExitCode(err))

	_, _, err = run(t, "load", "--no-such-flag", "a.csv")
	assert.Equal(t, 2, ExitCode(err))
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "people.csv", peopleCSV)
	out := filepath.Join(dir, "people.out.csv")

	_, stderr, err := run(t, "convert", "--out-delimiter", ",", "-x", "city", in, out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "4 lines")
	assert.Equal(t, "id,name\n1,ann\n2,bob\n3,cid\n", readFile(t, out))

	stdout, _, err := run(t, "convert", "--out-no-header", in, "-")
	require.NoError(t, err)
	assert.Equal(t, "1;ann;oslo\n2;bob;\n3;cid;rome\n", strings.ReplaceAll(stdout, "\r\n", "\n"))
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "id;v\n1;a\n2;b\n")
	b := writeFile(t, dir, "b.csv", "id;v;w\n2;B;x\n3;c;y\n")
	out := filepath.Join(dir, "merged.csv")

	_, stderr, err := run(t, "merge", "-k", "id", a, b, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "2 files into 3 rows")
	assert.Equal(t, "id;v;w\n1;a;\n2;B;x\n3;c;y\n", readFile(t, out))
}

func TestParquetCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "people.csv", peopleCSV)
	out := filepath.Join(dir, "people.parquet")

	stdout, _, err := run(t, "parquet", "--infer-types", in, out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 rows, 3 columns")

	info, err := export.ReadParquetInfo(out)
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Rows)
}

func TestPgCommand(t *testing.T) {
	in := writeFile(t, t.TempDir(), "people.csv", peopleCSV)

	_, _, err := run(t, "pg", in)
	require.Error(t, err, "--table is required")

	_, _, err = run(t, "pg", "-t", "bad-name", in)
	assert.True(t, errors.Is(err, errUsage))

	_, _, err = run(t, "pg", "-t", "public.people", in)
	assert.True(t, errors.Is(err, core.ErrPostgresNotConfigured))
}

func TestImportDirCommand(t *testing.T) {
	dir := t.TempDir()
	profiles := writeFile(t, t.TempDir(), "profiles.yaml", `profiles:
  orders:
    key: [id]
    skip_empty: [amount]
`)
	writeFile(t, dir, "jan.csv", "id;amount\n1;10\n2;\n")
	writeFile(t, dir, "feb.csv", "id;amount\n3;30\n")
	out := filepath.Join(dir, "orders.csv")

	_, stderr, err := run(t, "--profiles", profiles, "-p", "orders", "import-dir", dir, "-o", out)
	require.NoError(t, err)

	assert.Contains(t, stderr, "jan.csv")
	assert.Contains(t, stderr, "1 excluded")
	assert.Contains(t, stderr, "merged: 2 rows")
	assert.Equal(t, "id;amount\n3;30\n1;10\n", readFile(t, out))
	assert.FileExists(t, filepath.Join(dir, core.UploadedDir, "jan.csv"))
	assert.FileExists(t, filepath.Join(dir, "jan - failed.csv"))

	_, stderr, err = run(t, "--profiles", profiles, "-p", "orders", "import-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "no files to import")
}

func TestUnknownProfile(t *testing.T) {
	in := writeFile(t, t.TempDir(), "people.csv", peopleCSV)
	_, _, err := run(t, "-p", "nope", "load", in)
	assert.True(t, errors.Is(err, core.ErrUnknownProfile))
}
