package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Heracs/MeetingSonar-sub001/internal/format"
	"github.com/Heracs/MeetingSonar-sub001/internal/recording"
)

// defaultListLimit is how many recordings list shows without --limit.
const defaultListLimit = 20

// ListCmd creates the list command.
func ListCmd(env *Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent recordings",
		Long: `List recordings from the index, newest first.

Recordings that were still open when the program last exited are shown as failed.`,
		Example: `  sonar list
  sonar list -n 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), env, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "Maximum number of recordings to show")
	return cmd
}

// runList prints the most recent limit recordings as a table.
func runList(ctx context.Context, env *Env, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}

	st, err := openState(ctx, env, cfg.LogLevel, false)
	if err != nil {
		return err
	}
	defer st.close()

	entries, err := st.store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(env.Stderr, "No recordings yet.")
		return nil
	}

	tw := tabwriter.NewWriter(env.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tSIZE\tTRIGGER\tSOURCES\tSTATUS\tFILE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			format.Timestamp(e.StartedAt),
			entryDuration(e),
			entrySize(e),
			e.Trigger,
			e.Sources,
			e.Status,
			e.Path,
		)
	}
	return tw.Flush()
}

func entryDuration(e recording.Entry) string {
	if e.Status == recording.StatusRecording {
		return "-"
	}
	return format.Duration(e.Duration)
}

func entrySize(e recording.Entry) string {
	if e.SizeBytes <= 0 {
		return "-"
	}
	return format.Size(e.SizeBytes)
}
