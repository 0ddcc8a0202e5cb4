package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dockhand-build/dockhand/internal/cli/ui"
	"github.com/dockhand-build/dockhand/internal/history"
	"github.com/dockhand-build/dockhand/internal/pipeline"
)

var (
	historyLimit int
	historyJSON  bool
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent builds from the ledger",
		Long: `List recent builds recorded in .dockhand/history.db, newest first,
with their input digests and outcomes. Two builds sharing recipe and
manifest digests but producing different images mean the dependency
manifest resolved differently between them.`,
		Example: `  dockhand history
  dockhand history --limit 50
  dockhand history --json`,
		RunE: runHistory,
	}

	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum builds to list")
	cmd.Flags().BoolVar(&historyJSON, "json", false, "Output builds in JSON format")

	return cmd
}

type historyRecordJSON struct {
	BuildID        string    `json:"build_id"`
	ImageRef       string    `json:"image_ref"`
	ImageID        string    `json:"image_id,omitempty"`
	RecipeDigest   string    `json:"recipe_digest"`
	ManifestDigest string    `json:"manifest_digest"`
	Status         string    `json:"status"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
	Drift          bool      `json:"drift,omitempty"`
}

// driftSet reports which builds share input digests with another
// succeeded build yet produced a different image. With a floating
// resolver the manifest does not pin the dependency closure, so this
// is informational, not an error.
func driftSet(records []history.Record) map[string]bool {
	images := make(map[string]map[string]bool)
	for _, rec := range records {
		if rec.Status != history.StatusSucceeded || rec.ImageID == "" {
			continue
		}
		key := rec.RecipeDigest + "\x00" + rec.ManifestDigest
		if images[key] == nil {
			images[key] = make(map[string]bool)
		}
		images[key][rec.ImageID] = true
	}

	drifted := make(map[string]bool)
	for _, rec := range records {
		key := rec.RecipeDigest + "\x00" + rec.ManifestDigest
		if rec.Status == history.StatusSucceeded && rec.ImageID != "" && len(images[key]) > 1 {
			drifted[rec.BuildID] = true
		}
	}
	return drifted
}

func runHistory(cmd *cobra.Command, args []string) error {
	dir, err := projectDir()
	if err != nil {
		return err
	}

	ledger, err := history.Open(filepath.Join(dir, pipeline.WorkDirName))
	if err != nil {
		return err
	}
	defer ledger.Close()

	records, err := ledger.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	drifted := driftSet(records)

	if historyJSON {
		out := make([]historyRecordJSON, 0, len(records))
		for _, rec := range records {
			out = append(out, historyRecordJSON{
				BuildID:        rec.BuildID,
				ImageRef:       rec.ImageRef,
				ImageID:        rec.ImageID,
				RecipeDigest:   rec.RecipeDigest,
				ManifestDigest: rec.ManifestDigest,
				Status:         rec.Status,
				DurationMS:     rec.Duration.Milliseconds(),
				CreatedAt:      rec.CreatedAt,
				Drift:          drifted[rec.BuildID],
			})
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No builds recorded yet.")
		return nil
	}

	table := ui.NewTable(cmd.OutOrStdout(), []string{"WHEN", "IMAGE", "STATUS", "DURATION", "MANIFEST"}, nil)
	for _, rec := range records {
		status := rec.Status
		if drifted[rec.BuildID] {
			status += " (drift)"
		}
		table.AddRow(
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.ImageRef,
			status,
			rec.Duration.Round(time.Millisecond).String(),
			shortDigest(rec.ManifestDigest),
		)
	}
	table.Render()
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
