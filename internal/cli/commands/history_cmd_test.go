package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dockhand-build/dockhand/internal/history"
	"github.com/dockhand-build/dockhand/internal/pipeline"
)

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	if cmd.Use != "history" {
		t.Errorf("expected Use to be 'history', got %s", cmd.Use)
	}

	if cmd.Flags().Lookup("limit") == nil {
		t.Error("expected --limit flag to be registered")
	}
	if cmd.Flags().Lookup("json") == nil {
		t.Error("expected --json flag to be registered")
	}
}

func TestRunHistory_Empty(t *testing.T) {
	chdirTemp(t)

	cmd := NewHistoryCommand()
	cmd.SetContext(context.Background())
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	if err := runHistory(cmd, []string{}); err != nil {
		t.Fatalf("expected empty history to succeed, got: %v", err)
	}
	if !strings.Contains(stdout.String(), "No builds recorded yet") {
		t.Errorf("expected empty-ledger message, got: %s", stdout.String())
	}
}

func TestRunHistory_ListsRecordedBuilds(t *testing.T) {
	dir := chdirTemp(t)

	ledger, err := history.Open(filepath.Join(dir, pipeline.WorkDirName))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	rec := &history.Record{
		BuildID:        "b-123",
		ImageRef:       "catalog-api:latest",
		ImageID:        "sha256:abcdef",
		RecipeDigest:   "sha256:1111",
		ManifestDigest: "sha256:2222",
		Status:         history.StatusSucceeded,
		Duration:       3 * time.Second,
	}
	if err := ledger.Insert(context.Background(), rec); err != nil {
		t.Fatalf("failed to insert record: %v", err)
	}
	ledger.Close()

	cmd := NewHistoryCommand()
	cmd.SetContext(context.Background())
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	if err := runHistory(cmd, []string{}); err != nil {
		t.Fatalf("expected history listing to succeed, got: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "catalog-api:latest") {
		t.Errorf("expected the image ref in the table, got: %s", out)
	}
	if !strings.Contains(out, "succeeded") {
		t.Errorf("expected the build status in the table, got: %s", out)
	}
}

func TestRunHistory_MarksDrift(t *testing.T) {
	dir := chdirTemp(t)

	ledger, err := history.Open(filepath.Join(dir, pipeline.WorkDirName))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	for i, imageID := range []string{"sha256:aaaa", "sha256:bbbb"} {
		rec := &history.Record{
			BuildID:        "b-" + imageID,
			ImageRef:       "catalog-api:latest",
			ImageID:        imageID,
			RecipeDigest:   "sha256:1111",
			ManifestDigest: "sha256:2222",
			Status:         history.StatusSucceeded,
			Duration:       time.Duration(i+1) * time.Second,
		}
		if err := ledger.Insert(context.Background(), rec); err != nil {
			t.Fatalf("failed to insert record: %v", err)
		}
	}
	ledger.Close()

	cmd := NewHistoryCommand()
	cmd.SetContext(context.Background())
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	if err := runHistory(cmd, []string{}); err != nil {
		t.Fatalf("expected history listing to succeed, got: %v", err)
	}

	if !strings.Contains(stdout.String(), "(drift)") {
		t.Errorf("expected drift marker for same inputs with different images, got: %s", stdout.String())
	}
}

func TestDriftSet(t *testing.T) {
	records := []history.Record{
		{BuildID: "a", RecipeDigest: "r1", ManifestDigest: "m1", Status: history.StatusSucceeded, ImageID: "img1"},
		{BuildID: "b", RecipeDigest: "r1", ManifestDigest: "m1", Status: history.StatusSucceeded, ImageID: "img2"},
		{BuildID: "c", RecipeDigest: "r1", ManifestDigest: "m2", Status: history.StatusSucceeded, ImageID: "img3"},
		{BuildID: "d", RecipeDigest: "r1", ManifestDigest: "m1", Status: history.StatusFailed},
	}

	drifted := driftSet(records)

	if !drifted["a"] || !drifted["b"] {
		t.Error("expected both builds with shared inputs and different images to drift")
	}
	if drifted["c"] {
		t.Error("expected the build with distinct inputs not to drift")
	}
	if drifted["d"] {
		t.Error("expected the failed build not to drift")
	}
}

func TestRunHistory_JSON(t *testing.T) {
	dir := chdirTemp(t)

	ledger, err := history.Open(filepath.Join(dir, pipeline.WorkDirName))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	rec := &history.Record{
		BuildID:        "b-456",
		ImageRef:       "catalog-api:latest",
		RecipeDigest:   "sha256:1111",
		ManifestDigest: "sha256:2222",
		Status:         history.StatusFailed,
		Duration:       500 * time.Millisecond,
	}
	if err := ledger.Insert(context.Background(), rec); err != nil {
		t.Fatalf("failed to insert record: %v", err)
	}
	ledger.Close()

	cmd := NewHistoryCommand()
	historyJSON = true
	defer func() { historyJSON = false }()
	cmd.SetContext(context.Background())
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	if err := runHistory(cmd, []string{}); err != nil {
		t.Fatalf("expected history listing to succeed, got: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "\"build_id\": \"b-456\"") {
		t.Errorf("expected the build id in JSON output, got: %s", out)
	}
	if !strings.Contains(out, "\"duration_ms\": 500") {
		t.Errorf("expected the duration in JSON output, got: %s", out)
	}
}
