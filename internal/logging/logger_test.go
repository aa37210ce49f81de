package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledIsNoOp(t *testing.T) {
	if err := Initialize(Options{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer Close()

	// Must not panic or create files.
	RouterDebug("ignored %d", 1)
	Get(CategoryFlow).Error("ignored")

	if IsDebugMode() {
		t.Error("debug mode should be off")
	}
	if IsCategoryEnabled(CategoryRouter) {
		t.Error("categories should be disabled when debug mode is off")
	}
}

func TestInitializeCreatesLogs(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(Options{Dir: dir, DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		Close()
		Initialize(Options{})
		logsDir = ""
	}()

	FlowDebug("state=%s", "RUNNING")
	Close()

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_flow.log") {
			found = true
			data, _ := os.ReadFile(filepath.Join(dir, "logs", e.Name()))
			if !strings.Contains(string(data), "state=RUNNING") {
				t.Errorf("flow log missing message, got: %s", data)
			}
		}
	}
	if !found {
		t.Error("expected a flow log file")
	}
}

func TestCategoryFilter(t *testing.T) {
	dir := t.TempDir()
	err := Initialize(Options{
		Dir:        dir,
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"router": false},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		Close()
		Initialize(Options{})
		logsDir = ""
	}()

	if IsCategoryEnabled(CategoryRouter) {
		t.Error("router category should be disabled")
	}
	if !IsCategoryEnabled(CategoryPolicy) {
		t.Error("unlisted categories default to enabled")
	}
}

func TestLevelGate(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(Options{Dir: dir, DebugMode: true, Level: "error"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		Close()
		Initialize(Options{})
		logsDir = ""
	}()

	l := Get(CategoryPolicy)
	l.Debug("hidden")
	l.Error("visible")
	Close()

	entries, _ := os.ReadDir(filepath.Join(dir, "logs"))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_policy.log") {
			data, _ := os.ReadFile(filepath.Join(dir, "logs", e.Name()))
			if strings.Contains(string(data), "hidden") {
				t.Error("debug line leaked past error level")
			}
			if !strings.Contains(string(data), "visible") {
				t.Error("error line missing")
			}
		}
	}
}
