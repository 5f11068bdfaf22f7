// Package client contains Cobra CLI commands for talking to a Pond server.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/pond/pkg/client"
)

// NewQueryCommand constructs the `query` subcommand.
func NewQueryCommand() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Query log records, optionally following live appends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			site, _ := cmd.Flags().GetString("site")
			since, _ := cmd.Flags().GetString("since")
			until, _ := cmd.Flags().GetString("until")
			expr, _ := cmd.Flags().GetString("filter")
			follow, _ := cmd.Flags().GetBool("follow")
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			sinceMs, err := parseWhen(since)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			untilMs, err := parseWhen(until)
			if err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}

			c, err := client.Dial(addr, client.Options{DialTimeout: 5 * time.Second})
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			stream, err := c.Run(client.Query{
				Site:    site,
				SinceMs: sinceMs,
				UntilMs: untilMs,
				Expr:    expr,
				Follow:  follow,
			})
			if err != nil {
				return err
			}
			if follow {
				// Cancel the stream when the user interrupts.
				go func() {
					<-cmd.Context().Done()
					_ = stream.Cancel()
				}()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			n := 0
			for {
				rec, err := stream.Next()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				if asJSON {
					_ = enc.Encode(struct {
						TimestampMs int64  `json:"ts_ms"`
						Site        string `json:"site"`
						Message     string `json:"message"`
					}{rec.TimestampMs, rec.Site, rec.Message})
				} else {
					ts := time.UnixMilli(rec.TimestampMs).UTC().Format(time.RFC3339Nano)
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ts, rec.Site, rec.Message)
				}
				n++
				if limit > 0 && n >= limit {
					_ = stream.Cancel()
					return nil
				}
			}
		},
	}
	queryCmd.Flags().String("addr", "127.0.0.1:5480", "Query server address")
	queryCmd.Flags().String("site", "", "Restrict to one site")
	queryCmd.Flags().String("since", "", "Window start: RFC3339 or unix ms")
	queryCmd.Flags().String("until", "", "Window end: RFC3339 or unix ms")
	queryCmd.Flags().String("filter", "", "CEL filter expression (server-side)")
	queryCmd.Flags().BoolP("follow", "f", false, "Keep the query open and stream live records")
	queryCmd.Flags().Int("limit", 0, "Stop after N records (0 = unbounded)")
	queryCmd.Flags().Bool("json", false, "Emit records as JSON lines")
	return queryCmd
}

// parseWhen accepts a unix millisecond count or an RFC3339 timestamp.
func parseWhen(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("expected ms or RFC3339: %s", s)
	}
	return t.UnixMilli(), nil
}
