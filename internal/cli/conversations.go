package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/merchbot/console/internal/api"
)

func newConversationsCmd(flags *rootFlags) *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations without entering the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			client, err := api.NewClient(api.ClientConfig{
				BaseURL:        cfg.API.BaseURL,
				TokenFile:      cfg.TokenFilePath(),
				RequestTimeout: cfg.API.RequestTimeout,
			})
			if err != nil {
				return err
			}

			conversations, err := client.Conversations(cmd.Context(), unreadOnly)
			if err != nil {
				return err
			}
			if len(conversations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no conversations")
				return nil
			}

			rows := make([][]string, 0, len(conversations))
			for _, conv := range conversations {
				lastAt := ""
				if !conv.LastMessageAt.IsZero() {
					lastAt = conv.LastMessageAt.Local().Format(time.DateTime)
				}
				rows = append(rows, []string{
					conv.PeerID,
					conv.Label(),
					strconv.Itoa(conv.UnreadCount),
					lastAt,
					conv.LastMessagePreview,
				})
			}
			return writeTable(cmd.OutOrStdout(), []string{"PEER", "NAME", "UNREAD", "LAST", "PREVIEW"}, rows)
		},
	}

	cmd.Flags().BoolVar(&unreadOnly, "unread-only", false, "Only conversations with unread messages")
	return cmd
}
