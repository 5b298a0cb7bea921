package export

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func testJob(dir string) Job {
	start := time.Date(2025, 1, 1, 11, 55, 0, 0, time.UTC)
	return Job{
		Identifier: "evt-1",
		StartTime:  start,
		EndTime:    start.Add(10 * time.Minute),
		Cameras:    nil,
		OutputDir:  filepath.Join(dir, "evt-1"),
	}
}

func TestBuildArgs(t *testing.T) {
	p := NewProtectArchiver("192.168.1.1", "admin", "secret", time.Minute)
	job := testJob(t.TempDir())
	job.Cameras = []string{"porch", "garage"}

	args := p.buildArgs(job)
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"download",
		"--address 192.168.1.1",
		"--username admin",
		"--password secret",
		"--start 2025-01-01 11:55:00+0000",
		"--end 2025-01-01 12:05:00+0000",
		"--cameras=porch,garage",
		"--no-use-subfolders",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected %q in args, got: %s", want, joined)
		}
	}
	if args[len(args)-1] != job.OutputDir {
		t.Errorf("Expected output dir as final argument, got %s", args[len(args)-1])
	}
}

func TestCamerasArg(t *testing.T) {
	cases := []struct {
		cameras []string
		want    string
	}{
		{nil, "--cameras=all"},
		{[]string{}, "--cameras=all"},
		{[]string{""}, "--cameras=all"},
		{[]string{"porch"}, "--cameras=porch"},
		{[]string{"porch", "", "garage"}, "--cameras=porch,garage"},
	}
	for _, tc := range cases {
		if got := camerasArg(tc.cameras); got != tc.want {
			t.Errorf("camerasArg(%v) = %q, want %q", tc.cameras, got, tc.want)
		}
	}
}

func TestRedactArgs(t *testing.T) {
	args := []string{"download", "--password", "secret", "--start", "x"}
	redacted := strings.Join(redactArgs(args), " ")
	if strings.Contains(redacted, "secret") {
		t.Errorf("Password leaked into logged args: %s", redacted)
	}
	if args[2] != "secret" {
		t.Errorf("redactArgs must not mutate its input")
	}
}

// writeScript drops an executable shell script used as a stand-in archiver.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-ins need a POSIX shell")
	}
	path := filepath.Join(dir, "fake-archiver.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

func TestExportSuccess(t *testing.T) {
	dir := t.TempDir()
	p := NewProtectArchiver("addr", "user", "pass", 5*time.Second)
	p.Command = writeScript(t, dir, "exit 0")

	job := testJob(dir)
	if err := p.Export(job); err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}
	if _, err := os.Stat(job.OutputDir); err != nil {
		t.Errorf("Output directory not created: %v", err)
	}
}

func TestExportNonzeroExit(t *testing.T) {
	dir := t.TempDir()
	p := NewProtectArchiver("addr", "user", "pass", 5*time.Second)
	p.Command = writeScript(t, dir, "echo 'connection refused' >&2; exit 3")

	err := p.Export(testJob(dir))
	if err == nil {
		t.Fatalf("Expected failure for nonzero exit")
	}
	// Diagnostic output is captured into the error
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Expected captured stderr in error, got: %v", err)
	}
}

func TestExportTimeout(t *testing.T) {
	dir := t.TempDir()
	p := NewProtectArchiver("addr", "user", "pass", 200*time.Millisecond)
	p.Command = writeScript(t, dir, "sleep 10")

	start := time.Now()
	err := p.Export(testJob(dir))
	if err == nil {
		t.Fatalf("Expected timeout failure")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Expected timeout in error, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Timeout did not kill the subprocess promptly, took %s", elapsed)
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"evt-1", "evt-1"},
		{"front door", "front_door"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"evt_1.2", "evt_1.2"},
	}
	for _, tc := range cases {
		if got := SanitizeIdentifier(tc.in); got != tc.want {
			t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
