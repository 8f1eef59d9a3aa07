package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvtable/internal/config"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestImportDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "jan.csv"), "id;amount\n1;10\n2;\n3;30\n")
	writeFile(t, filepath.Join(dir, "feb.csv"), "id;amount\n3;33\n4;40\n")
	writeFile(t, filepath.Join(dir, "broken.csv"), "code;amount\n9;90\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	s := testService(t, config.Profile{
		Name:      "ledger",
		Key:       []string{"id"},
		Required:  []string{"id"},
		SkipEmpty: []string{"amount"},
	})

	res, err := s.ImportDirectory(context.Background(), dir, "ledger")
	require.NoError(t, err)
	require.Len(t, res.Files, 3)

	byName := map[string]FileResult{}
	for _, f := range res.Files {
		byName[f.File] = f
	}

	assert.NotEmpty(t, byName["broken.csv"].Error)
	assert.FileExists(t, filepath.Join(dir, "broken.csv"))

	jan := byName["jan.csv"]
	assert.Empty(t, jan.Error)
	assert.Equal(t, 1, jan.FailedRows)
	assert.Equal(t, 3, jan.ProcessedRows)
	assert.FileExists(t, filepath.Join(dir, UploadedDir, "jan.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "jan.csv"))

	failed, err := os.ReadFile(filepath.Join(dir, "jan - failed.csv"))
	require.NoError(t, err)
	assert.Equal(t, "status;id;amount\nexcluded by profile;2;\n", normalizeNewlines(string(failed)))

	assert.Equal(t, 0, byName["feb.csv"].FailedRows)
	assert.Empty(t, byName["feb.csv"].FailedFile)

	require.NotNil(t, res.Table)
	assert.Equal(t, 3, res.Table.Rows)
	assert.Equal(t, []string{"id"}, res.Table.Key)

	merged, _, err := s.Get(res.Table.ID)
	require.NoError(t, err)
	// Files load in name order, so jan.csv wins for id 3.
	assert.Equal(t, "3", merged.String(0, "id"))
	assert.Equal(t, "30", merged.String(0, "amount"))
	assert.Equal(t, "1", merged.String(2, "id"))

	// A second run skips the failed file and finds nothing else to load.
	res, err = s.ImportDirectory(context.Background(), dir, "ledger")
	require.NoError(t, err)
	assert.Len(t, res.Files, 1)
	assert.Nil(t, res.Table)
}

func TestImportDirectory_StatusColumnTaken(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "orders.csv"), "id;status;status_1;amount\n1;open;x;10\n2;closed;y;\n")

	s := testService(t, config.Profile{
		Name:      "orders",
		Key:       []string{"id"},
		SkipEmpty: []string{"amount"},
	})

	res, err := s.ImportDirectory(context.Background(), dir, "orders")
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Empty(t, res.Files[0].Error)
	assert.Equal(t, 1, res.Files[0].FailedRows)
	assert.FileExists(t, filepath.Join(dir, UploadedDir, "orders.csv"))

	failed, err := os.ReadFile(filepath.Join(dir, "orders - failed.csv"))
	require.NoError(t, err)
	assert.Equal(t, "status_2;id;status;status_1;amount\nexcluded by profile;2;closed;y;\n", normalizeNewlines(string(failed)))

	require.NotNil(t, res.Table)
	assert.Equal(t, 1, res.Table.Rows)
}

func TestImportDirectory_Errors(t *testing.T) {
	s := testService(t)

	_, err := s.ImportDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), "")
	assert.Error(t, err)

	_, err = s.ImportDirectory(context.Background(), t.TempDir(), "nope")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func normalizeNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
