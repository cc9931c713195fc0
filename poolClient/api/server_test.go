package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
	"github.com/pushchain/push-pool-client/poolClient/reconciler"
	"github.com/pushchain/push-pool-client/poolClient/store"
	"github.com/pushchain/push-pool-client/poolClient/submitter"
)

// MockPoolClient implements PoolClientInterface for testing
type MockPoolClient struct {
	snapshots  map[string]ledger.Snapshot
	views      map[string]reconciler.View
	commands   map[string]*store.Command
	lastUpdate time.Time
	head       uint64
	submitted  []ledger.CommandRequest
	submitErr  error
}

func NewMockPoolClient(t *testing.T) *MockPoolClient {
	t.Helper()
	view, err := reconciler.NewView(
		ledger.LedgerEvent{BlockHeight: 5, SequenceInBlock: 0, EventType: "PubKeyDeposited", BlockHash: "0x05"},
		ledger.LedgerEvent{BlockHeight: 5, SequenceInBlock: 1, EventType: "PubKeyDeposited", BlockHash: "0x05"},
		ledger.LedgerEvent{BlockHeight: 6, SequenceInBlock: 0, EventType: "PubKeyDeposited", BlockHash: "0x06"},
	)
	require.NoError(t, err)

	now := time.Now()
	return &MockPoolClient{
		snapshots: map[string]ledger.Snapshot{
			"getOperators": {SlotName: "getOperators", Values: []any{[]string{"1", "2"}}, AsOfHeight: 6, FetchedAt: now},
		},
		views: map[string]reconciler.View{"PubKeyDeposited": view},
		commands: map[string]*store.Command{
			"ref-1": {
				Model:       gorm.Model{CreatedAt: now},
				Ref:         "ref-1",
				TargetSlot:  "operators",
				Method:      "updateOperators",
				TxHash:      "0xabc",
				Status:      store.CommandStatusConfirmed,
				BlockHeight: 7,
			},
		},
		lastUpdate: now,
		head:       8,
	}
}

func (m *MockPoolClient) Snapshots() []ledger.Snapshot {
	out := make([]ledger.Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	return out
}

func (m *MockPoolClient) Snapshot(slot string) (ledger.Snapshot, bool) {
	s, ok := m.snapshots[slot]
	return s, ok
}

func (m *MockPoolClient) View(eventType string) (reconciler.View, bool) {
	v, ok := m.views[eventType]
	return v, ok
}

func (m *MockPoolClient) GetCacheLastUpdate() time.Time { return m.lastUpdate }

func (m *MockPoolClient) Head() uint64 { return m.head }

func (m *MockPoolClient) Commands() []submitter.Command {
	return []submitter.Command{{TargetSlot: "operators", Method: "updateOperators"}}
}

func (m *MockPoolClient) SubmitCommand(ctx context.Context, req ledger.CommandRequest) (string, ledger.CommandOutcome, error) {
	if req.TargetSlot == "" {
		return "", ledger.CommandOutcome{}, errors.NewValidationError("", "target slot is required")
	}
	if m.submitErr != nil {
		return "ref-failed", ledger.CommandOutcome{}, m.submitErr
	}
	m.submitted = append(m.submitted, req)
	return "ref-2", ledger.Submitted("0xdef"), nil
}

func (m *MockPoolClient) CommandStatus(ref string) (*store.Command, ledger.CommandOutcome, error) {
	cmd, ok := m.commands[ref]
	if !ok {
		return nil, ledger.CommandOutcome{}, nil
	}
	out := ledger.Confirmed(cmd.BlockHeight)
	out.RequestID = cmd.TxHash
	return cmd, out, nil
}

func TestNewServer(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	mockClient := NewMockPoolClient(t)

	t.Run("Create server with valid config", func(t *testing.T) {
		server := NewServer(mockClient, logger, 8080)

		assert.NotNil(t, server)
		assert.Equal(t, mockClient, server.client)
		assert.NotNil(t, server.server)
		assert.Equal(t, ":8080", server.server.Addr)
	})

	t.Run("Create server with different port", func(t *testing.T) {
		server := NewServer(mockClient, logger, 9090)

		assert.NotNil(t, server)
		assert.Equal(t, ":9090", server.server.Addr)
	})
}

func TestServerStartStop(t *testing.T) {
	logger := zerolog.Nop()
	mockClient := NewMockPoolClient(t)

	t.Run("Start and stop server", func(t *testing.T) {
		server := NewServer(mockClient, logger, 0)

		require.NoError(t, server.Start())
		assert.NoError(t, server.Stop())
	})

	t.Run("Start with nil server", func(t *testing.T) {
		server := &Server{
			client: mockClient,
			logger: logger,
			server: nil,
		}

		err := server.Start()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "query server is nil")
	})

	t.Run("Stop with nil server", func(t *testing.T) {
		server := &Server{
			client: mockClient,
			logger: logger,
			server: nil,
		}

		assert.NoError(t, server.Stop())
	})
}

func TestServerIntegration(t *testing.T) {
	logger := zerolog.Nop()
	server := NewServer(NewMockPoolClient(t), logger, 18081)

	require.NoError(t, server.Start())
	defer server.Stop()

	resp, err := http.Get("http://localhost:18081/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
