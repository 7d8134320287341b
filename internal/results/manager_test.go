package results

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/types"
)

func sampleResult(runID string, started time.Time) *types.DocumentResult {
	return &types.DocumentResult{
		RunID:              runID,
		InputPath:          "/docs/in.pdf",
		OutputPath:         "/docs/out.pdf",
		PageCount:          4,
		PagesReconstructed: 3,
		PagesSkipped:       []types.SkippedPage{{Page: 4, Reason: "malformed content array"}},
		UnitsTranslated:    42,
		FormulasRestored:   7,
		StartedAt:          started,
		FinishedAt:         started.Add(time.Minute),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	want := sampleResult("abc123", time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	want.AddWarning(2, types.ErrFormulaRestore, "unknown placeholder id")
	require.NoError(t, m.Save(want))

	got, err := m.Load("abc123")
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.PagesSkipped, got.PagesSkipped)
	assert.Equal(t, want.Warnings, got.Warnings)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
}

func TestSaveRequiresRunID(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, m.Save(&types.DocumentResult{}))
}

func TestListNewestFirst(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Save(sampleResult("old", base)))
	require.NoError(t, m.Save(sampleResult("new", base.Add(time.Hour))))

	results, err := m.List()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "new", results[0].RunID)
	assert.Equal(t, "old", results[1].RunID)
}

func TestDelete(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, m.Save(sampleResult("gone", time.Now())))
	require.NoError(t, m.Delete("gone"))
	_, err = m.Load("gone")
	assert.Error(t, err)

	results, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, results)
}
