package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	chaincommon "github.com/pushchain/push-pool-client/poolClient/chains/common"
	"github.com/pushchain/push-pool-client/poolClient/constant"
	"github.com/pushchain/push-pool-client/poolClient/core"
	"github.com/pushchain/push-pool-client/poolClient/db"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// PersistedEvent is one row of the persisted view.
type PersistedEvent struct {
	BlockHeight     uint64         `json:"block_height"`
	SequenceInBlock uint           `json:"sequence_in_block"`
	BlockHash       string         `json:"block_hash,omitempty"`
	TxHash          string         `json:"tx_hash,omitempty"`
	Payload         []ledger.Field `json:"payload"`
}

// PersistedView is the output of the events command.
type PersistedView struct {
	ContractAddress string           `json:"contract_address"`
	EventType       string           `json:"event_type"`
	Cursor          uint64           `json:"cursor"`
	Count           int              `json:"count"`
	Events          []PersistedEvent `json:"events"`
}

func eventsCmd(v *viper.Viper) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "events [event-type]",
		Short: "Dump the persisted view from the local database",
		Long:  "Reads the database directly, so it works while the daemon is stopped.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			eventType := constant.EventPubKeyDeposited
			if len(args) == 1 {
				eventType = args[0]
			}

			database, err := db.OpenFileDB(
				filepath.Join(cfg.NodeHome, constant.DatabasesSubdir),
				core.DatabaseFileName(cfg.ContractAddress),
				true,
			)
			if err != nil {
				return err
			}
			defer database.Close()

			view, err := dumpView(chaincommon.NewChainStore(database, cfg.ContractAddress), eventType)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), view, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func dumpView(cs *chaincommon.ChainStore, eventType string) (*PersistedView, error) {
	cursor, err := cs.GetCursor()
	if err != nil {
		return nil, fmt.Errorf("failed to read cursor: %w", err)
	}
	rows, err := cs.LoadEvents(eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	view := &PersistedView{
		ContractAddress: cs.ContractAddress(),
		EventType:       eventType,
		Cursor:          cursor,
		Count:           len(rows),
		Events:          make([]PersistedEvent, 0, len(rows)),
	}
	for _, row := range rows {
		var payload []ledger.Field
		if len(row.Payload) > 0 {
			if err := json.Unmarshal(row.Payload, &payload); err != nil {
				return nil, fmt.Errorf("failed to decode event at %d:%d: %w", row.BlockHeight, row.LogIndex, err)
			}
		}
		view.Events = append(view.Events, PersistedEvent{
			BlockHeight:     row.BlockHeight,
			SequenceInBlock: row.LogIndex,
			BlockHash:       row.BlockHash,
			TxHash:          row.TxHash,
			Payload:         payload,
		})
	}
	return view, nil
}
