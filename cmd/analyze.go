package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/reviewdesk/internal/app"
	"github.com/joescharf/reviewdesk/internal/export"
	"github.com/joescharf/reviewdesk/internal/models"
	"github.com/joescharf/reviewdesk/internal/output"
)

var (
	analyzeTone   string
	analyzeStdin  bool
	analyzeExport bool
	analyzeJSON   bool
)

// stdinReader is replaceable in tests.
var stdinReader io.Reader = os.Stdin

var analyzeCmd = &cobra.Command{
	Use:   "analyze [review text]",
	Short: "Analyze a customer review and draft a reply",
	Long: `Send a review to the configured AI endpoint. The result (sentiment,
up to three key issues and a draft reply) is printed and saved to history.

The review text comes from the arguments, or from stdin with --stdin.`,
	Example: `  reviewdesk analyze "The delivery was late and the box was crushed"
  reviewdesk analyze --stdin --tone Apologetic --export < review.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := reviewInput(args)
		if err != nil {
			return err
		}
		return analyzeRun(text)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeTone, "tone", "t", models.DefaultTone, "Reply tone: "+strings.Join(models.Tones(), ", "))
	analyzeCmd.Flags().BoolVar(&analyzeStdin, "stdin", false, "Read the review text from stdin")
	analyzeCmd.Flags().BoolVarP(&analyzeExport, "export", "e", false, "Also write a plain-text export to export.dir")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func reviewInput(args []string) (string, error) {
	if analyzeStdin {
		data, err := io.ReadAll(stdinReader)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("review text is required (pass it as an argument or use --stdin)")
	}
	return strings.Join(args, " "), nil
}

func analyzeRun(text string) error {
	if strings.TrimSpace(text) == "" {
		return app.ErrEmptyReview
	}
	if dryRun {
		ui.DryRunMsg("Would analyze %d characters with tone %s", len(text), analyzeTone)
		return nil
	}

	c, err := getController()
	if err != nil {
		return err
	}

	ui.VerboseLog("Analyzing review (%s tone)", analyzeTone)
	state, err := c.Analyze(cmdContext(), text, analyzeTone)
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"id":     state.CurrentID,
			"tone":   state.Tone,
			"result": state.Result,
		})
	}

	printState(state)

	if analyzeExport {
		doc, err := c.Export()
		if err != nil {
			return err
		}
		path, err := export.Write(viper.GetString("export.dir"), doc)
		if err != nil {
			return err
		}
		ui.Success("Exported to %s", path)
	}
	return nil
}

// printState renders the displayed analysis.
func printState(state app.State) {
	res := state.Result
	if res == nil {
		ui.Info("No analysis displayed")
		return
	}

	switch res.Outcome {
	case models.OutcomeUnparsed:
		ui.Warning("The AI response could not be parsed; sentiment was estimated from keywords")
	case models.OutcomeUnreachable:
		ui.Warning("The AI endpoint could not be reached")
	}

	fmt.Fprintf(ui.Out, "%s  %s  (%s)\n", output.Cyan("Sentiment"), output.SentimentColor(string(res.Sentiment)), state.Tone)
	fmt.Fprintln(ui.Out)

	var points strings.Builder
	for i, issue := range res.Issues {
		if i > 0 {
			points.WriteString("\n")
		}
		points.WriteString("- " + issue)
	}
	ui.Section("Key points", points.String())
	fmt.Fprintln(ui.Out)
	ui.Section("Reply", state.EditableReply)
	fmt.Fprintln(ui.Out)

	if state.CurrentID != "" {
		ui.Success("Saved as %s", output.Cyan(shortID(state.CurrentID)))
	} else {
		ui.Warning("Analysis was not saved to history")
	}
}
