package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/merchbot/console/internal/api"
	"github.com/merchbot/console/internal/archive"
)

func newArchiveCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect the local message archive",
	}

	cmd.AddCommand(
		newArchiveSearchCmd(flags),
		newArchiveShowCmd(flags),
	)
	return cmd
}

func newArchiveSearchCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search archived message text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openArchive(flags)
			if err != nil {
				return err
			}
			defer store.Close()

			messages, err := store.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printMessages(cmd, messages, true)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum results")
	return cmd
}

func newArchiveShowCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <peer-id>",
		Short: "Show archived messages for one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openArchive(flags)
			if err != nil {
				return err
			}
			defer store.Close()

			messages, err := store.MessagesFor(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printMessages(cmd, messages, false)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "Maximum results")
	return cmd
}

func openArchive(flags *rootFlags) (*archive.Archive, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.Enabled {
		return nil, fmt.Errorf("archive is disabled in configuration")
	}
	return archive.Open(cfg.ArchivePath())
}

func printMessages(cmd *cobra.Command, messages []api.Message, withPeer bool) error {
	if len(messages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no messages")
		return nil
	}

	headers := []string{"SENT", "DIR", "TEXT"}
	if withPeer {
		headers = []string{"SENT", "PEER", "DIR", "TEXT"}
	}

	rows := make([][]string, 0, len(messages))
	for _, msg := range messages {
		text := strings.ReplaceAll(msg.Text, "\n", " ")
		row := []string{
			msg.SentAt.Local().Format(time.DateTime),
			string(msg.Direction),
			text,
		}
		if withPeer {
			row = []string{row[0], msg.PeerID, row[1], row[2]}
		}
		rows = append(rows, row)
	}
	return writeTable(cmd.OutOrStdout(), headers, rows)
}
