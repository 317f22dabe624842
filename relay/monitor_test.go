package relay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/hashanchor/receipt-bridge/config"
	"github.com/hashanchor/receipt-bridge/entity"
	"github.com/hashanchor/receipt-bridge/ethclient"
	"github.com/hashanchor/receipt-bridge/relay"
)

type confirmation struct {
	confirmations uint64
	status        entity.JobStatus
}

func testMonitor(client ethclient.Client, chain entity.Chain, required uint, pollInterval, maxPollDuration time.Duration) *relay.Monitor {
	cfg := &config.Config{
		Chains: map[string]*config.ChainConfig{
			string(chain): {
				ChainID:               "1337",
				RequiredConfirmations: required,
				PollInterval:          config.Duration(pollInterval),
			},
		},
		Relay: &config.RelayConfig{
			SourceChain:     "gnosis",
			MaxAttempts:     3,
			RetryBackoff:    config.Duration(time.Millisecond),
			MaxRetryBackoff: config.Duration(time.Millisecond),
			MaxPollDuration: config.Duration(maxPollDuration),
		},
	}
	return relay.NewMonitor(testLogger(), map[entity.Chain]ethclient.Client{chain: client}, cfg)
}

var (
	testDocHash = common.HexToHash("0xdeadbeef00000000000000000000000000000000000000000000000000000001")
	testTxHash  = common.HexToHash("0x3333333333333333333333333333333333333333333333333333333333333333")
)

func TestStartPollingConfirms(t *testing.T) {
	t.Parallel()

	client := &fakeClient{statuses: []*ethclient.TxStatus{
		{Mined: true, Confirmations: 5},
		{Mined: true, Confirmations: 12},
	}}
	monitor := testMonitor(client, entity.ChainPolygon, 12, time.Millisecond, time.Second)

	var calls []confirmation
	err := monitor.StartPolling(context.Background(), testDocHash, entity.ChainPolygon, testTxHash, func(confirmations uint64, status entity.JobStatus) error {
		calls = append(calls, confirmation{confirmations, status})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []confirmation{
		{5, entity.JobPendingConfirmation},
		{12, entity.JobConfirmed},
	}, calls)
}

func TestStartPollingReverted(t *testing.T) {
	t.Parallel()

	client := &fakeClient{statuses: []*ethclient.TxStatus{
		{Mined: true, Confirmations: 1},
		{Mined: true, Reverted: true, Confirmations: 2},
	}}
	monitor := testMonitor(client, entity.ChainArbitrum, 20, time.Millisecond, time.Second)

	var calls []confirmation
	err := monitor.StartPolling(context.Background(), testDocHash, entity.ChainArbitrum, testTxHash, func(confirmations uint64, status entity.JobStatus) error {
		calls = append(calls, confirmation{confirmations, status})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, entity.JobFailed, calls[len(calls)-1].status)
}

func TestStartPollingTimesOut(t *testing.T) {
	t.Parallel()

	// the transaction is never mined, e.g. it was dropped from the mempool
	client := &fakeClient{}
	monitor := testMonitor(client, entity.ChainOptimism, 12, 2*time.Millisecond, 15*time.Millisecond)

	var calls []confirmation
	err := monitor.StartPolling(context.Background(), testDocHash, entity.ChainOptimism, testTxHash, func(confirmations uint64, status entity.JobStatus) error {
		calls = append(calls, confirmation{confirmations, status})
		return nil
	})
	require.NoError(t, err)
	last := calls[len(calls)-1]
	require.Equal(t, entity.JobTimeout, last.status)
	require.Zero(t, last.confirmations)
}

func TestStartPollingConfirmationsNeverDecrease(t *testing.T) {
	t.Parallel()

	// a short reorg drops the reported depth from 5 to 3
	client := &fakeClient{statuses: []*ethclient.TxStatus{
		{Mined: true, Confirmations: 5},
		{Mined: true, Confirmations: 3},
		{Mined: true, Confirmations: 12},
	}}
	monitor := testMonitor(client, entity.ChainPolygon, 12, time.Millisecond, time.Second)

	var calls []confirmation
	err := monitor.StartPolling(context.Background(), testDocHash, entity.ChainPolygon, testTxHash, func(confirmations uint64, status entity.JobStatus) error {
		calls = append(calls, confirmation{confirmations, status})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []confirmation{
		{5, entity.JobPendingConfirmation},
		{5, entity.JobPendingConfirmation},
		{12, entity.JobConfirmed},
	}, calls)
}

func TestStartPollingToleratesPollErrors(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		statusErrs: []error{errors.New("connection reset")},
		statuses: []*ethclient.TxStatus{
			nil, // consumed by the erroring call
			{Mined: true, Confirmations: 12},
		},
	}
	monitor := testMonitor(client, entity.ChainPolygon, 12, time.Millisecond, time.Second)

	var calls []confirmation
	err := monitor.StartPolling(context.Background(), testDocHash, entity.ChainPolygon, testTxHash, func(confirmations uint64, status entity.JobStatus) error {
		calls = append(calls, confirmation{confirmations, status})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []confirmation{{12, entity.JobConfirmed}}, calls)
}

func TestStartPollingUnknownChain(t *testing.T) {
	t.Parallel()

	monitor := testMonitor(&fakeClient{}, entity.ChainPolygon, 12, time.Millisecond, time.Second)
	err := monitor.StartPolling(context.Background(), testDocHash, entity.ChainArbitrum, testTxHash, func(uint64, entity.JobStatus) error {
		t.Fatal("no confirmation expected")
		return nil
	})
	require.ErrorIs(t, err, entity.ErrUnsupportedChain)
}

func TestStartPollingStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	client := &fakeClient{statuses: []*ethclient.TxStatus{{Mined: true, Confirmations: 1}}}
	monitor := testMonitor(client, entity.ChainPolygon, 12, time.Millisecond, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := monitor.StartPolling(ctx, testDocHash, entity.ChainPolygon, testTxHash, func(confirmations uint64, status entity.JobStatus) error {
		require.False(t, status.Terminal())
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
