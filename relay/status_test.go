package relay_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/hashanchor/receipt-bridge/entity"
	"github.com/hashanchor/receipt-bridge/relay"
)

func TestGetCrossChainStatus(t *testing.T) {
	t.Parallel()

	otherHash := common.HexToHash("0x4444444444444444444444444444444444444444444444444444444444444444")
	txHash := common.HexToHash("0x5555555555555555555555555555555555555555555555555555555555555555")
	lastError := "all 3 submission attempts exhausted"

	confirmed := testJob(entity.ChainPolygon)
	confirmed.Status = entity.JobConfirmed
	confirmed.Confirmations = 15
	confirmed.TxHash = &txHash

	failed := testJob(entity.ChainArbitrum)
	failed.Status = entity.JobFailed
	failed.Attempts = 3
	failed.LastError = &lastError

	unrelated := testJob(entity.ChainOptimism)
	unrelated.DocHash = otherHash
	unrelated.Status = entity.JobConfirmed

	jobs := []*entity.BridgeJob{confirmed, failed, unrelated}
	res := relay.GetCrossChainStatus(testDocHash, jobs)

	// failed jobs stay visible, chains of other documents do not leak in
	require.Equal(t, map[entity.Chain]*relay.ChainStatus{
		entity.ChainPolygon: {
			Status:        entity.JobConfirmed,
			TxHash:        &txHash,
			Confirmations: 15,
		},
		entity.ChainArbitrum: {
			Status:    entity.JobFailed,
			LastError: &lastError,
		},
	}, res)

	// the aggregation is pure, repeated calls yield identical results
	require.Equal(t, res, relay.GetCrossChainStatus(testDocHash, jobs))
}

func TestGetCrossChainStatusEmpty(t *testing.T) {
	t.Parallel()

	res := relay.GetCrossChainStatus(testDocHash, nil)
	require.NotNil(t, res)
	require.Empty(t, res)
}

func TestGetCrossChainStatusNewestJobWins(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	old := testJob(entity.ChainPolygon)
	old.Status = entity.JobFailed
	old.CreatedAt = &t0

	retried := testJob(entity.ChainPolygon)
	retried.Status = entity.JobConfirmed
	retried.Confirmations = 30
	retried.CreatedAt = &t1

	for _, jobs := range [][]*entity.BridgeJob{
		{old, retried},
		{retried, old},
	} {
		res := relay.GetCrossChainStatus(testDocHash, jobs)
		require.Len(t, res, 1)
		require.Equal(t, entity.JobConfirmed, res[entity.ChainPolygon].Status)
		require.Equal(t, uint(30), res[entity.ChainPolygon].Confirmations)
	}
}
