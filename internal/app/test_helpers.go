package app

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/sweptgrid/internal/config"
	"github.com/specialistvlad/sweptgrid/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteRunFile writes content to a run.hcl file in a fresh temporary
// directory and returns its path.
func WriteRunFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.hcl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing run file: %v", err)
	}
	return path
}

// SetupAppTest creates a new app instance for system testing. Set
// SWEPTGRID_TEST_LOGS=true to print the captured logs.
func SetupAppTest(t *testing.T, appConfig *Config, loader config.Loader, modules ...registry.Module) (*App, *SafeBuffer, error) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	appConfig.LogLevel = "debug"
	testApp, err := NewApp(logBuffer, appConfig, loader, modules...)

	t.Cleanup(func() {
		if os.Getenv("SWEPTGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer, err
}
