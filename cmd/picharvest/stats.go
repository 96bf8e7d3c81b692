package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"picharvest/pkg/ui"
)

var (
	topDomains     int
	recentSessions int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the metadata database holds",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent harvest sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session with its URLs and image records",
	Long: `Delete a session with its URLs and image records.

Files on disk are left alone. Their fingerprints are forgotten, so a later
run may download the same pictures again.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	statsCmd.Flags().IntVar(&topDomains, "top", 10, "number of referrer domains to list")
	sessionsCmd.Flags().IntVar(&recentSessions, "limit", 10, "number of sessions to list")
}

func runStats(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := st.Stats(context.Background(), topDomains)
	if err != nil {
		return err
	}

	ui.PrintHighlight("Database")
	ui.PrintInfo("Sessions", strconv.Itoa(s.Sessions))
	ui.PrintInfo("Referrer URLs", fmt.Sprintf("%d (%d visited, %d errored)", s.URLs, s.Visited, s.Errored))
	ui.PrintInfo("Images", fmt.Sprintf("%d (%s)", s.Images, ui.FormatBytes(s.Bytes)))

	if len(s.TopDomains) > 0 {
		fmt.Println()
		ui.PrintHighlight("Top referrer domains")
		for _, d := range s.TopDomains {
			fmt.Printf("  %-40s %5d images from %d pages\n", d.Domain, d.Images, d.URLs)
		}
	}
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.RecentSessions(context.Background(), recentSessions)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ui.PrintWarning("No sessions recorded")
		return nil
	}
	for _, s := range list {
		fmt.Printf("%s  %s  %s\n",
			ui.Cyan(fmt.Sprintf("#%-5d", s.ID)),
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			ui.Yellow(s.Query))
		fmt.Printf("        %d URLs, %d visited, %d images\n", s.TotalURLs, s.Visited, s.Images)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id %q", args[0])
	}

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	sess, err := st.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("session %d: %w", id, err)
	}
	if err := st.DeleteSession(ctx, id); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Deleted session %d (%s)", id, sess.Query))
	return nil
}
