package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/reviewdesk/internal/export"
	"github.com/joescharf/reviewdesk/internal/models"
	"github.com/joescharf/reviewdesk/internal/output"
)

var (
	historyLimit     int
	historyExportDir string
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h"},
	Short:   "Browse and manage saved analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListRun()
	},
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListRun()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyShowRun(args[0])
	},
}

var historyReplyCmd = &cobra.Command{
	Use:   "reply <id> <reply text>",
	Short: "Replace the saved reply of an analysis",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyReplyRun(args[0], strings.Join(args[1:], " "))
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved analysis",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyDeleteRun(args[0])
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a saved analysis to a plain-text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyExportRun(args[0])
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "l", 0, "Show at most this many records")
	historyExportCmd.Flags().StringVarP(&historyExportDir, "dir", "d", "", "Output directory (default: export.dir)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyReplyCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyListRun() error {
	c, err := getController()
	if err != nil {
		return err
	}

	recs := c.Refresh(cmdContext()).History
	if historyLimit > 0 && historyLimit < len(recs) {
		recs = recs[:historyLimit]
	}
	if len(recs) == 0 {
		ui.Info("No saved analyses.")
		return nil
	}

	table := ui.Table([]string{"ID", "Created", "Sentiment", "Tone", "Review"})
	for _, rec := range recs {
		_ = table.Append([]string{
			shortID(rec.ID),
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			output.SentimentColor(string(rec.Sentiment)),
			rec.Tone,
			output.Excerpt(rec.ReviewText, 48),
		})
	}
	_ = table.Render()
	return nil
}

func historyShowRun(id string) error {
	h, err := getHistory()
	if err != nil {
		return err
	}
	rec, err := findReview(cmdContext(), h, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(rec.ID)), output.SentimentColor(string(rec.Sentiment)))
	fmt.Fprintf(ui.Out, "  Tone:       %s\n", rec.Tone)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", rec.ID)
	fmt.Fprintln(ui.Out)
	ui.Section("Review", rec.ReviewText)
	fmt.Fprintln(ui.Out)

	var points strings.Builder
	for i, issue := range rec.Issues {
		if i > 0 {
			points.WriteString("\n")
		}
		points.WriteString("- " + issue)
	}
	ui.Section("Key points", points.String())
	fmt.Fprintln(ui.Out)
	ui.Section("Reply", rec.Reply)
	return nil
}

func historyReplyRun(id, reply string) error {
	c, err := getController()
	if err != nil {
		return err
	}
	h, err := getHistory()
	if err != nil {
		return err
	}
	rec, err := findReview(cmdContext(), h, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would replace reply of %s", shortID(rec.ID))
		return nil
	}

	c.LoadFromHistory(*rec)
	c.UpdateReply(reply)
	c.Wait()
	if c.Snapshot().Unsaved {
		return fmt.Errorf("failed to save reply for %s", shortID(rec.ID))
	}

	ui.Success("Updated reply of %s", output.Cyan(shortID(rec.ID)))
	return nil
}

func historyDeleteRun(id string) error {
	c, err := getController()
	if err != nil {
		return err
	}
	h, err := getHistory()
	if err != nil {
		return err
	}
	rec, err := findReview(cmdContext(), h, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete %s: %s", shortID(rec.ID), output.Excerpt(rec.ReviewText, 48))
		return nil
	}

	if !c.DeleteFromHistory(cmdContext(), rec.ID) {
		return fmt.Errorf("failed to delete %s", shortID(rec.ID))
	}
	ui.Success("Deleted %s", output.Cyan(shortID(rec.ID)))
	return nil
}

func historyExportRun(id string) error {
	c, err := getController()
	if err != nil {
		return err
	}
	h, err := getHistory()
	if err != nil {
		return err
	}
	rec, err := findReview(cmdContext(), h, id)
	if err != nil {
		return err
	}

	dir := historyExportDir
	if dir == "" {
		dir = viper.GetString("export.dir")
	}

	c.LoadFromHistory(*rec)
	doc, err := c.Export()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would write %s to %s", doc.Filename, dir)
		fmt.Fprintln(ui.Out, doc.Content)
		return nil
	}

	path, err := export.Write(dir, doc)
	if err != nil {
		return err
	}
	ui.Success("Exported %s to %s", output.Cyan(shortID(rec.ID)), path)
	return nil
}

// reviewLookup is the part of the history adapter used to resolve ids.
type reviewLookup interface {
	Get(ctx context.Context, id string) *models.ReviewRecord
	List(ctx context.Context) []models.ReviewRecord
}

// findReview finds a record by full ID or case-insensitive prefix match.
func findReview(ctx context.Context, h reviewLookup, id string) (*models.ReviewRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("review id is required")
	}

	// Try exact match first
	if rec := h.Get(ctx, id); rec != nil {
		return rec, nil
	}

	upper := strings.ToUpper(id)
	var matches []models.ReviewRecord
	for _, rec := range h.List(ctx) {
		if strings.HasPrefix(strings.ToUpper(rec.ID), upper) {
			matches = append(matches, rec)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("review not found: %s", id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous review ID %s: matches %d reviews", id, len(matches))
	}
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
