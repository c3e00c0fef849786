package app

import (
	"os"
	"testing"

	"github.com/vk/oceanbaselines/internal/config"
	"github.com/vk/oceanbaselines/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Logs go to
// the returned buffer at debug level and are dumped when OBL_TEST_LOGS=true.
func SetupAppTest(t *testing.T, cfg *Config, loader config.Loader, opts ...Option) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp, err := NewApp(logBuffer, cfg, loader, opts...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	t.Cleanup(func() {
		if os.Getenv("OBL_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
