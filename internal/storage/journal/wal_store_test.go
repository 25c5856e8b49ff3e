package journal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/substake/substake/internal/domain"
)

func testResult(netuid int, status domain.ExecutionStatus) domain.ExecutionResult {
	return domain.ExecutionResult{
		Operation: domain.StakeOperation{
			Kind:         domain.KindStake,
			OriginNetuid: netuid,
			OriginHotkey: "hotkey",
			Amount:       domain.FromRao(1_000_000_000, domain.RootNetuid),
		},
		Status: status,
	}
}

func TestWALStoreSaveAndRecords(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(testResult(1, domain.StatusIncludedSuccess)))
	require.NoError(t, store.Save(testResult(2, domain.StatusIncludedFailure)))

	records, err := store.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)

	var first struct {
		Kind   string `json:"kind"`
		Netuid int    `json:"netuid"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(records[0], &first))
	require.Equal(t, "stake", first.Kind)
	require.Equal(t, 1, first.Netuid)
	require.Equal(t, "success", first.Status)
}

func TestWALStoreRecordsMovedAmount(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	result := testResult(1, domain.StatusIncludedSuccess)
	moved := domain.FromRao(900_000_000, domain.RootNetuid)
	result.AmountMoved = &moved
	result.PartialFill = true
	require.NoError(t, store.Save(result))

	records, err := store.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)

	var rec struct {
		MovedRao    *int64 `json:"moved_rao"`
		PartialFill bool   `json:"partial_fill"`
	}
	require.NoError(t, json.Unmarshal(records[0], &rec))
	require.NotNil(t, rec.MovedRao)
	require.Equal(t, int64(900_000_000), *rec.MovedRao)
	require.True(t, rec.PartialFill)
}

func TestWALStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(testResult(1, domain.StatusIncludedSuccess)))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	// appending after a reopen must continue the index sequence
	require.NoError(t, reopened.Save(testResult(2, domain.StatusIncludedFailure)))

	records, err := reopened.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
}
