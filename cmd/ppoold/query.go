package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/pushchain/push-pool-client/poolClient/api"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

// Output formats
const (
	OutputFormatYAML = "yaml"
	OutputFormatJSON = "json"
)

// QueryResponse represents the standard query response format from HTTP API
type QueryResponse struct {
	Data        json.RawMessage `json:"data"`
	LastFetched time.Time       `json:"last_fetched"`
}

// SlotOutput represents the output format for slot snapshots
type SlotOutput struct {
	Snapshot    *ledger.Snapshot  `yaml:"snapshot,omitempty" json:"snapshot,omitempty"`
	Snapshots   []ledger.Snapshot `yaml:"snapshots,omitempty" json:"snapshots,omitempty"`
	LastFetched time.Time         `yaml:"last_fetched" json:"last_fetched"`
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func queryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Query a running pool client",
	}

	cmd.AddCommand(
		slotsCmd(v),
		slotCmd(v),
		viewCmd(v),
		commandCmd(v),
	)

	return cmd
}

func slotsCmd(v *viper.Viper) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Query the latest snapshot of every slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			var queryResp QueryResponse
			if err := getJSON(v, "/api/v1/slots", &queryResp); err != nil {
				return err
			}

			var snaps []ledger.Snapshot
			if err := json.Unmarshal(queryResp.Data, &snaps); err != nil {
				return fmt.Errorf("failed to unmarshal snapshots: %w", err)
			}

			return printOutput(cmd.OutOrStdout(), SlotOutput{
				Snapshots:   snaps,
				LastFetched: queryResp.LastFetched,
			}, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func slotCmd(v *viper.Viper) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "slot [name]",
		Short: "Query the latest snapshot of one slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var queryResp QueryResponse
			if err := getJSON(v, "/api/v1/slots/"+url.PathEscape(args[0]), &queryResp); err != nil {
				return err
			}

			var snap ledger.Snapshot
			if err := json.Unmarshal(queryResp.Data, &snap); err != nil {
				return fmt.Errorf("failed to unmarshal snapshot: %w", err)
			}

			return printOutput(cmd.OutOrStdout(), SlotOutput{
				Snapshot:    &snap,
				LastFetched: queryResp.LastFetched,
			}, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func viewCmd(v *viper.Viper) *cobra.Command {
	var (
		fromHeight   uint64
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "events [event-type]",
		Short: "Query the reconciled view of an event type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/events/" + url.PathEscape(args[0])
			if fromHeight > 0 {
				path += fmt.Sprintf("?from_height=%d", fromHeight)
			}

			var resp api.EventsResponse
			if err := getJSON(v, path, &resp); err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), resp, outputFormat)
		},
	}

	cmd.Flags().Uint64Var(&fromHeight, "from-height", 0, "Only show events at or above this height")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func commandCmd(v *viper.Viper) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "command [ref]",
		Short: "Query the outcome of a submitted command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.CommandResponse
			if err := getJSON(v, "/api/v1/commands/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), resp, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func submitCmd(v *viper.Viper) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "submit [target-slot] [params...]",
		Short: "Submit a command through a running pool client",
		Long: `Submit a state-changing command. Parameters are positional and passed
as given; list parameters are JSON arrays, e.g.

  ppoold submit operators '[1,2,3]'
  ppoold submit beacon_rewards 1.5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make([]any, 0, len(args)-1)
			for _, p := range args[1:] {
				params = append(params, p)
			}

			body, err := json.Marshal(ledger.CommandRequest{TargetSlot: args[0], Parameters: params})
			if err != nil {
				return fmt.Errorf("failed to encode command: %w", err)
			}

			var resp api.CommandResponse
			if err := postJSON(v, "/api/v1/commands", body, &resp); err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), resp, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

// queryBaseURL loads the config to get the query server port
func queryBaseURL(v *viper.Viper) (string, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://localhost:%d", cfg.QueryServerPort), nil
}

func getJSON(v *viper.Viper, path string, out interface{}) error {
	base, err := queryBaseURL(v)
	if err != nil {
		return err
	}
	resp, err := httpClient.Get(base + path)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out, http.StatusOK)
}

func postJSON(v *viper.Viper, path string, body []byte, out interface{}) error {
	base, err := queryBaseURL(v)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to post %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out, http.StatusAccepted, http.StatusBadGateway)
}

func decodeResponse(resp *http.Response, out interface{}, accepted ...int) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	for _, code := range accepted {
		if resp.StatusCode == code {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("server error: %s", errResp.Error)
}

// printOutput prints the output in the specified format
func printOutput(w io.Writer, data interface{}, format string) error {
	switch strings.ToLower(format) {
	case OutputFormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputFormatYAML:
		// go through JSON so the keys follow the json tags
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		var doc yaml.MapSlice
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return err
		}
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(doc)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
