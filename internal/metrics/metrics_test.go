package metrics

import (
	"testing"
	"time"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	// Observations after Init must not panic.
	ObserveRun("completed", 2*time.Second)
	ObserveScrape("success")
	ObserveIngest("created")
	ObserveBackup("failure")
	ObserveHTTPRequest("GET", "/api/articles", 200, 50*time.Millisecond)

	if Handler() == nil {
		t.Fatal("expected a metrics handler")
	}
}
