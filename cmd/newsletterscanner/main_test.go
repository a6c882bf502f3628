package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCategorizeAndLedgerCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "scanner.yaml")
	ledgerPath := filepath.Join(dir, "ids.json")
	require.NoError(t, os.WriteFile(ledgerPath, []byte(`["<a@x>","<b@x>"]`), 0o644))
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\nsink:\n  kind: stdout\nledger:\n  path: "+ledgerPath+"\n"), 0o644))
	t.Setenv("LEDGER_PATH", "")
	t.Setenv("USE_LLM_CATEGORIZATION", "")

	textPath := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("Un hack divertido para el fin de semana."), 0o644))

	out, err := execute(t, "categorize", "--config", cfgPath, textPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"category": "Curiosidad de la semana"`)

	out, err = execute(t, "ledger", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ids: 2")
	assert.Contains(t, out, "kind: file")
}

func TestCategorizeRequiresFile(t *testing.T) {
	_, err := execute(t, "categorize")
	assert.Error(t, err)
}

func TestRecordsCommandListsStoredRecords(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "scanner.yaml")
	dbPath := filepath.Join(dir, "records.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\nsink:\n  kind: sql\n  driver: sqlite\n  dsn: "+dbPath+"\n"), 0o644))

	out, err := execute(t, "records", "--config", cfgPath, "IA > negocio")
	require.NoError(t, err)
	assert.Contains(t, out, "MESSAGE ID")
	assert.NotContains(t, out, "<")
}
