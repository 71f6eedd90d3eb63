package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// ctlRoutes maps each ctl command to its control API call.
var ctlRoutes = map[string]struct{ method, path string }{
	"start":          {http.MethodPost, "/api/engine/start"},
	"stop":           {http.MethodPost, "/api/engine/stop"},
	"restart":        {http.MethodPost, "/api/engine/restart"},
	"cancel-all":     {http.MethodPost, "/api/engine/cancel-all"},
	"emergency-stop": {http.MethodPost, "/api/engine/emergency-stop"},
	"status":         {http.MethodGet, "/api/status"},
	"balance":        {http.MethodGet, "/api/balance"},
	"performance":    {http.MethodGet, "/api/performance"},
	"config":         {http.MethodGet, "/api/config"},
	"trades":         {http.MethodGet, "/api/trades"},
	"health":         {http.MethodGet, "/api/health"},
}

func ctlCmd() *cobra.Command {
	var (
		addr    string
		apiKey  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ctl <start|stop|restart|status|cancel-all|emergency-stop|balance|performance|config|trades|health>",
		Short: "Send a command to a running supervisor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ReplaceAll(strings.ToLower(args[0]), "_", "-")
			route, ok := ctlRoutes[name]
			if !ok {
				return fmt.Errorf("unknown command %q", args[0])
			}

			// Fill unset flags from the config file.
			if addr == "" || apiKey == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if addr == "" {
					addr = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
				}
				if apiKey == "" {
					apiKey = cfg.Server.APIKey
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return callControl(ctx, cmd.OutOrStdout(), strings.TrimRight(addr, "/")+route.path, route.method, apiKey)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "control API base URL (default http://localhost:<server.port>)")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("SPREADARB_API_KEY"), "control API key (default server.api_key)")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "request timeout")
	return cmd
}

// callControl performs one control API request and prints the indented JSON
// response. Non-2xx responses are returned as errors.
func callControl(ctx context.Context, out io.Writer, url, method, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ctl: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ctl: read response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = pretty.Bytes()
	}
	fmt.Fprintln(out, string(body))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("ctl: %s", resp.Status)
	}
	return nil
}
