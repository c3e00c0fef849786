package testutil

import (
	"bytes"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/vk/oceanbaselines/internal/region"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// NewLogger returns a debug-level text logger writing into a SafeBuffer.
// The buffer is dumped to the test log on cleanup when OBL_TEST_LOGS=true.
func NewLogger(t *testing.T) (*slog.Logger, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() {
		if os.Getenv("OBL_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), buf.String())
		}
	})
	return logger, buf
}

// Square returns a standard 1°x1° region anchored at (lon, lat).
func Square(name string, lon, lat float64) region.Region {
	return region.Region{
		Name:       name,
		Longitude:  region.Extent{Min: lon, Max: lon + 1},
		Latitude:   region.Extent{Min: lat, Max: lat + 1},
		Resolution: 0.25,
		SizeClass:  region.Standard,
	}
}
