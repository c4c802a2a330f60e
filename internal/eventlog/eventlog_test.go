package eventlog

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/volodyslav/volodyslav/internal/clock"
	"github.com/volodyslav/volodyslav/internal/filesystem"
	"github.com/volodyslav/volodyslav/internal/gitstore"
	"github.com/volodyslav/volodyslav/internal/gitwrap"
	"github.com/volodyslav/volodyslav/internal/subprocess"
)

func testLog(t *testing.T) (*Log, string) {
	t.Helper()
	g := gitwrap.New(subprocess.NewRunner())
	if err := g.Available(); err != nil {
		t.Skipf("git not available: %v", err)
	}
	env := gitstore.Env{Git: g, Log: slog.New(slog.DiscardHandler)}
	workingDir := t.TempDir()
	clk := clock.NewFake(time.Date(2021, 1, 1, 10, 0, 0, 0, time.UTC))
	return New(env, clk, workingDir, ""), workingDir
}

func TestAppendAndReadBack(t *testing.T) {
	log, _ := testLog(t)
	ctx := context.Background()

	first, err := log.Append(ctx, "diary-entry", map[string]any{"mood": "good"}, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := log.Append(ctx, "photo-import", nil, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("event ids must be unique")
	}

	events, err := log.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "diary-entry" || events[1].Type != "photo-import" {
		t.Fatalf("append order lost: %+v", events)
	}
	if events[0].Data["mood"] != "good" {
		t.Fatalf("payload lost: %+v", events[0])
	}
	if _, err := events[0].Time(); err != nil {
		t.Fatalf("timestamp unparseable: %v", err)
	}
}

func TestAppendCopiesAssets(t *testing.T) {
	log, workingDir := testLog(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "photo.jpg")
	if err := filesystem.WriteText(src, "jpeg bytes"); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	asset, err := filesystem.CheckFile(src)
	if err != nil {
		t.Fatalf("check asset: %v", err)
	}

	event, err := log.Append(ctx, "photo-import", nil, []filesystem.ExistingFile{asset})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(event.Assets) != 1 || !strings.HasSuffix(event.Assets[0], "photo.jpg") {
		t.Fatalf("asset path not recorded: %+v", event.Assets)
	}

	copied := filepath.Join(workingDir, RepositoryName, filepath.FromSlash(event.Assets[0]))
	f, err := filesystem.CheckFile(copied)
	if err != nil {
		t.Fatalf("asset not committed: %v", err)
	}
	content, err := filesystem.ReadText(f)
	if err != nil || content != "jpeg bytes" {
		t.Fatalf("asset content drifted: %q %v", content, err)
	}
}

func TestReadAllOnEmptyLog(t *testing.T) {
	log, _ := testLog(t)
	events, err := log.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}
