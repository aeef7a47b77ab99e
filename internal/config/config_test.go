package config

import (
	"path/filepath"
	"testing"
)

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	want := defaults()
	want.Server = "master.cluster"
	want.Queue = "batch"
	want.SSH.Addr = "login.cluster:22"
	want.SSH.User = "alice"

	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Server != "master.cluster" || got.Queue != "batch" {
		t.Errorf("got %+v", got)
	}
	if got.SSH.Addr != "login.cluster:22" || got.SSH.User != "alice" {
		t.Errorf("ssh: got %+v", got.SSH)
	}
	if got.Scheduler != "sshexec" {
		t.Errorf("scheduler default: got %q", got.Scheduler)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}
