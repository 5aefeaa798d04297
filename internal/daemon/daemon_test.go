package daemon_test

import (
	"context"
	"testing"

	"loom/internal/daemon"
	"loom/internal/logging"
	"loom/internal/testsupport"
)

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be refused")
	}

	status, err := first.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}

	first.Stop()
	status, err = first.Status(context.Background())
	if err != nil {
		t.Fatalf("Status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("expected stopped status")
	}

	// The lock is free again after Stop.
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("restart after release: %v", err)
	}
	second.Stop()
}
