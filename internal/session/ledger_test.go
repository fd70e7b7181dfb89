package session

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRecordAndHistory(t *testing.T) {
	ledger := NewLedger()

	first := ledger.Record("what is X?", "X is Y.", "gemini-2.0-flash", "a.pdf, b.pdf")
	second := ledger.Record("and Z?", "Z too.", "gemini-2.0-flash", "a.pdf, b.pdf")

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.Timestamp.IsZero())

	history := ledger.History()
	require.Len(t, history, 2)
	assert.Equal(t, "what is X?", history[0].Question)
	assert.Equal(t, "and Z?", history[1].Question)
	assert.Equal(t, "a.pdf, b.pdf", history[0].Sources)
}

func TestLedgerHistoryReturnsCopy(t *testing.T) {
	ledger := NewLedger()
	ledger.Record("q", "a", "m", "f.pdf")

	history := ledger.History()
	history[0].Answer = "mutated"

	assert.Equal(t, "a", ledger.History()[0].Answer)
}

func TestLedgerClear(t *testing.T) {
	ledger := NewLedger()
	ledger.Record("q", "a", "m", "f.pdf")

	ledger.Clear()
	assert.Empty(t, ledger.History())
}

func TestLedgerExportCSV(t *testing.T) {
	ledger := NewLedger()
	ledger.Record("what is X?", "X is Y.", "gemini-2.0-flash", "a.pdf")

	var buf bytes.Buffer
	require.NoError(t, ledger.ExportCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"Question", "Answer", "Model", "Timestamp", "PDF Name"}, records[0])
	assert.Equal(t, "what is X?", records[1][0])
	assert.Equal(t, "X is Y.", records[1][1])
	assert.Equal(t, "gemini-2.0-flash", records[1][2])
	assert.NotEmpty(t, records[1][3])
	assert.Equal(t, "a.pdf", records[1][4])
}

func TestLedgerExportCSVEmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLedger().ExportCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRegistryHandsOutOneLedgerPerUser(t *testing.T) {
	registry := NewRegistry()

	alice := registry.For("alice")
	alice.Record("q", "a", "m", "f.pdf")

	assert.Same(t, alice, registry.For("alice"))
	assert.Empty(t, registry.For("bob").History())
}
