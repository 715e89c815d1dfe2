package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soyeahso/forager/internal/config"
	"github.com/soyeahso/forager/internal/gateway"
	"github.com/soyeahso/forager/internal/session"
	"github.com/soyeahso/forager/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration summary and the state of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "forager %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Gateway: port=%d bind=%s auth=%s tls=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode, cfg.Gateway.TLS.Enabled)
			fmt.Fprintf(out, "LLM:     provider=%s model=%s fallbacks=%s\n",
				cfg.LLM.Provider, cfg.LLM.Providers[cfg.LLM.Provider].Model, strings.Join(cfg.LLM.Fallbacks, ","))

			names := make([]string, 0, len(cfg.LLM.Providers))
			for name, p := range cfg.LLM.Providers {
				key := "no key"
				if p.APIKey != "" {
					key = "key set"
				}
				names = append(names, fmt.Sprintf("%s(%s, %s)", name, p.API, key))
			}
			sort.Strings(names)
			fmt.Fprintf(out, "Providers: %s\n", strings.Join(names, " "))
			fmt.Fprintf(out, "Journal: enabled=%v\n", cfg.Journal.Enabled)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			client := newGatewayClient(cfg, url, 5*time.Second)
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			fmt.Fprintln(out)
			var health gateway.HealthResponse
			if err := client.do(ctx, "GET", "/health", nil, &health); err != nil {
				fmt.Fprintf(out, "Server:  not reachable at %s\n", client.baseURL)
				return nil
			}
			fmt.Fprintf(out, "Server:  %s at %s\n", health.Status, client.baseURL)

			var list struct {
				Sessions []session.Summary `json:"sessions"`
			}
			if err := client.do(ctx, "GET", "/sessions", nil, &list); err != nil {
				fmt.Fprintf(out, "Sessions: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "Sessions: %d\n", len(list.Sessions))
			for _, s := range list.Sessions {
				fmt.Fprintf(out, "  agent %-6s turns=%-4d history=%-4d updated=%s\n",
					s.EntityID, s.Turns, s.HistoryLen, s.UpdatedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "server URL (default from config)")
	return cmd
}
