package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chaincommon "github.com/pushchain/push-pool-client/poolClient/chains/common"
	"github.com/pushchain/push-pool-client/poolClient/config"
	"github.com/pushchain/push-pool-client/poolClient/constant"
	"github.com/pushchain/push-pool-client/poolClient/db"
	"github.com/pushchain/push-pool-client/poolClient/store"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInitWritesConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PPOOL_RPC_URLS", "http://a:8545, http://b:8545")
	t.Setenv("PPOOL_SIGNER_PRIVATE_KEY", "deadbeef")

	out, err := run(t, "init", "--home", home, "--contract-address", testContract, "--overlap-policy", "abandon")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(home, constant.ConfigSubdir, constant.ConfigFileName))

	cfg, err := config.Load(home)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a:8545", "http://b:8545"}, cfg.RPCURLs)
	assert.Equal(t, testContract, cfg.ContractAddress)
	assert.Equal(t, config.OverlapAbandon, cfg.OverlapPolicy)
	assert.Empty(t, cfg.SignerPrivateKeyHex)

	_, err = run(t, "init", "--home", home)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "init", "--home", home, "--force")
	require.NoError(t, err)
}

func TestApplyOverrides(t *testing.T) {
	t.Setenv("PPOOL_QUERY_PORT", "9191")
	t.Setenv("PPOOL_START_FROM", "100")
	t.Setenv("PPOOL_SIGNER_PRIVATE_KEY", "0xabc123")

	v := newViper()
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	require.NoError(t, applyOverrides(cfg, v))

	assert.Equal(t, 9191, cfg.QueryServerPort)
	require.NotNil(t, cfg.EventStartFrom)
	assert.Equal(t, int64(100), *cfg.EventStartFrom)
	assert.Equal(t, "0xabc123", cfg.SignerPrivateKeyHex)
	assert.Equal(t, constant.DefaultNodeHome, cfg.NodeHome)
	// unset keys keep the file value
	assert.Equal(t, []string{"http://localhost:8545"}, cfg.RPCURLs)

	t.Setenv("PPOOL_RPC_URLS", " , ")
	assert.Error(t, applyOverrides(cfg, newViper()))
}

func TestStartRequiresConfig(t *testing.T) {
	_, err := run(t, "start", "--home", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ppoold init")
}

func TestEventsDumpsPersistedView(t *testing.T) {
	home := t.TempDir()
	_, err := run(t, "init", "--home", home, "--contract-address", testContract)
	require.NoError(t, err)

	database, err := db.OpenFileDB(filepath.Join(home, constant.DatabasesSubdir), "0x5fbdb2315678afecb367f032d93f642f64180aa3.db", true)
	require.NoError(t, err)
	cs := chaincommon.NewChainStore(database, testContract)
	_, err = cs.InsertEvents([]store.Event{
		{BlockHeight: 6, LogIndex: 0, EventType: constant.EventPubKeyDeposited, Payload: []byte(`[{"name":"amount","type":"uint256","value":"32"}]`)},
		{BlockHeight: 5, LogIndex: 1, EventType: constant.EventPubKeyDeposited, BlockHash: "0x05"},
	})
	require.NoError(t, err)
	require.NoError(t, cs.AdvanceCursor(6))
	require.NoError(t, database.Close())

	out, err := run(t, "events", "--home", home, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 2`)
	assert.Contains(t, out, `"cursor": 6`)
	assert.Contains(t, out, `"value": "32"`)

	out, err = run(t, "events", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "event_type: PubKeyDeposited")
	assert.Contains(t, out, "block_height: 5")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ppoold")
}

func TestPrintOutputRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, printOutput(&buf, map[string]int{"a": 1}, "xml"))
}
