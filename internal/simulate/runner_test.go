package simulate

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestBuiltinScenariosPass(t *testing.T) {
	outcomes := NewRunner(nil, 1).Run(context.Background(), Builtin())
	if len(outcomes) != len(Builtin()) {
		t.Fatalf("ran %d scenarios, want %d", len(outcomes), len(Builtin()))
	}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Errorf("scenario %q failed: %v", o.Name, o.Err)
		}
	}
}

func TestBuiltinScenariosPass_Parallel(t *testing.T) {
	outcomes := NewRunner(nil, 4).Run(context.Background(), Builtin())
	if failed := Failed(outcomes); failed != 0 {
		t.Errorf("%d scenario(s) failed in parallel mode: %v", failed, outcomes)
	}
}

func TestRunner_FailureIsIsolatedAndDescriptive(t *testing.T) {
	scenarios := []Scenario{
		{Name: "fails", Run: func(sb *Sandbox) error {
			return expectEqual("sample content", "actual text", "expected text")
		}},
		{Name: "passes", Run: func(sb *Sandbox) error { return nil }},
	}
	outcomes := NewRunner(nil, 1).Run(context.Background(), scenarios)

	if outcomes[0].Err == nil {
		t.Fatal("failing scenario reported no error")
	}
	msg := outcomes[0].Err.Error()
	if !strings.Contains(msg, "actual text") || !strings.Contains(msg, "expected text") {
		t.Errorf("failure message lacks actual vs expected content: %s", msg)
	}
	if outcomes[1].Err != nil {
		t.Errorf("failure leaked into the next scenario: %v", outcomes[1].Err)
	}
}

func TestRunner_CleansUpSandboxOnFailure(t *testing.T) {
	var dir string
	scenarios := []Scenario{
		{Name: "fails", Run: func(sb *Sandbox) error {
			dir = sb.Dir
			if err := sb.Write("leftover.md", "# Leftover\n"); err != nil {
				return err
			}
			return errors.New("assertion failed")
		}},
	}
	NewRunner(nil, 1).Run(context.Background(), scenarios)

	if dir == "" {
		t.Fatal("scenario did not run")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("sandbox %s survived a failing scenario", dir)
	}
}

func TestRunner_RecoversPanics(t *testing.T) {
	var dir string
	scenarios := []Scenario{
		{Name: "panics", Run: func(sb *Sandbox) error {
			dir = sb.Dir
			panic("scenario bug")
		}},
	}
	outcomes := NewRunner(nil, 1).Run(context.Background(), scenarios)
	if outcomes[0].Err == nil || !strings.Contains(outcomes[0].Err.Error(), "scenario bug") {
		t.Errorf("panic not converted to error: %v", outcomes[0].Err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("sandbox %s survived a panicking scenario", dir)
	}
}

func TestSandbox_ExclusiveDirectories(t *testing.T) {
	a, err := newSandbox()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Cleanup()
	b, err := newSandbox()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Cleanup()

	if a.Dir == b.Dir {
		t.Errorf("sandboxes share a directory: %s", a.Dir)
	}
}
