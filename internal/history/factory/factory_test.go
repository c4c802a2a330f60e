package factory

import (
	"path/filepath"
	"testing"
)

func TestSQLiteDSNs(t *testing.T) {
	for _, dsn := range []string{
		filepath.Join(t.TempDir(), "plain.db"),
		"sqlite://" + filepath.Join(t.TempDir(), "prefixed.db"),
	} {
		sink, err := NewSinkFromDSN(dsn)
		if err != nil {
			t.Fatalf("dsn %q: %v", dsn, err)
		}
		_ = sink.Close()
	}
}

func TestOpenSearchDSN(t *testing.T) {
	// Construction is offline; only Record talks to the network.
	sink, err := NewSinkFromDSN("opensearch://localhost:9200/task-history")
	if err != nil {
		t.Fatalf("opensearch dsn: %v", err)
	}
	_ = sink.Close()
}

func TestRejectsUnknownScheme(t *testing.T) {
	if _, err := NewSinkFromDSN("kafka://localhost:9092/topic"); err == nil {
		t.Fatalf("unknown scheme must be rejected")
	}
	if _, err := NewSinkFromDSN(""); err == nil {
		t.Fatalf("empty DSN must be rejected")
	}
}
