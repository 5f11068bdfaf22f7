package client

import (
	"bufio"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/pond/pkg/client"
)

// NewSendCommand constructs the `send` subcommand. It exists for testing
// and scripting: real producers speak the datagram format directly.
func NewSendCommand() *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send log records to a Pond ingest port",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			site, _ := cmd.Flags().GetString("site")
			message, _ := cmd.Flags().GetString("message")
			fromStdin, _ := cmd.Flags().GetBool("stdin")

			ing, err := client.DialIngest(addr)
			if err != nil {
				return err
			}
			defer func() { _ = ing.Close() }()

			if fromStdin {
				sc := bufio.NewScanner(cmd.InOrStdin())
				n := 0
				for sc.Scan() {
					rec := client.Record{
						TimestampMs: time.Now().UnixMilli(),
						Site:        site,
						Message:     sc.Text(),
					}
					if err := ing.Send(rec); err != nil {
						return err
					}
					n++
				}
				if err := sc.Err(); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sent %d records\n", n)
				return nil
			}

			if message == "" {
				return fmt.Errorf("either --message or --stdin is required")
			}
			return ing.Send(client.Record{
				TimestampMs: time.Now().UnixMilli(),
				Site:        site,
				Message:     message,
			})
		},
	}
	sendCmd.Flags().String("addr", "127.0.0.1:5479", "Ingest address")
	sendCmd.Flags().String("site", "", "Site the records belong to")
	sendCmd.Flags().String("message", "", "Message to send")
	sendCmd.Flags().Bool("stdin", false, "Send one record per stdin line")
	return sendCmd
}
