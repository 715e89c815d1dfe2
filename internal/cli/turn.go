package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/soyeahso/forager/internal/config"
	"github.com/soyeahso/forager/internal/domain"
	"github.com/spf13/cobra"
)

func newTurnCmd() *cobra.Command {
	var (
		agentID   int64
		stateFile string
		mapFile   string
		url       string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Send one world-state update to a running server and print the action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := buildTurnBody(domain.EntityID(agentID), stateFile, mapFile)
			if err != nil {
				return err
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}
			client := newGatewayClient(cfg, url, timeout)

			var action domain.StructuredAction
			if err := client.do(cmd.Context(), "POST", "/nlp", body, &action); err != nil {
				return err
			}

			out, err := json.MarshalIndent(action, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().Int64Var(&agentID, "agent", 0, "agent (entity) id")
	cmd.Flags().StringVar(&stateFile, "state", "", "JSON file with the world state object")
	cmd.Flags().StringVar(&mapFile, "map", "", "image file to attach as the agent's map")
	cmd.Flags().StringVar(&url, "url", "", "server URL (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "request timeout")
	cmd.MarkFlagRequired("agent")

	return cmd
}

// buildTurnBody assembles the request body the simulation would send.
func buildTurnBody(id domain.EntityID, stateFile, mapFile string) (map[string]any, error) {
	body := map[string]any{}
	if stateFile != "" {
		data, err := os.ReadFile(stateFile)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("%s: expected a JSON object: %w", stateFile, err)
		}
		if body == nil {
			body = map[string]any{}
		}
	}
	body["agentID"] = int64(id)

	if mapFile != "" {
		img, err := os.ReadFile(mapFile)
		if err != nil {
			return nil, err
		}
		body["mapData"] = base64.StdEncoding.EncodeToString(img)
	}
	return body, nil
}
