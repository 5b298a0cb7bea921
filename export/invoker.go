package export

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05-0700"

// Job describes one export invocation: an absolute time range, a camera
// filter and the folder the exporter writes into. Jobs are derived from an
// event at fire time and not retained afterwards.
type Job struct {
	Identifier string
	StartTime  time.Time
	EndTime    time.Time
	Cameras    []string // empty means all cameras
	OutputDir  string
}

// Exporter runs a single export job, writing recording files into the job's
// output directory. Implementations report success or failure as a whole.
type Exporter interface {
	Export(job Job) error
}

// ProtectArchiver invokes the protect-archiver CLI to download recordings
// from a UniFi Protect controller. A hard wall-clock timeout bounds every
// invocation; an exceeded timeout kills the subprocess.
type ProtectArchiver struct {
	Address  string
	Username string
	Password string
	Timeout  time.Duration

	// Command overrides the executable name, for tests
	Command string
}

// NewProtectArchiver builds an invoker for the given controller credentials.
func NewProtectArchiver(address, username, password string, timeout time.Duration) *ProtectArchiver {
	return &ProtectArchiver{
		Address:  address,
		Username: username,
		Password: password,
		Timeout:  timeout,
		Command:  "protect-archiver",
	}
}

// Export runs the archiver for job. Exit code 0 means success; a nonzero
// exit or a timeout is a failure carrying the captured diagnostic output.
// Partial files may remain in the output directory on failure.
func (p *ProtectArchiver) Export(job Job) error {
	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", job.OutputDir, err)
	}

	args := p.buildArgs(job)
	log.Printf("Running %s for event %s: %s %s", p.Command, job.Identifier, p.Command, strings.Join(redactArgs(args), " "))

	cmd := exec.Command(p.Command, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.Command, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s failed for event %s: %w\nOutput: %s", p.Command, job.Identifier, err, output.String())
		}
		log.Printf("Export completed for event %s", job.Identifier)
		return nil
	case <-time.After(p.Timeout):
		cmd.Process.Kill()
		<-done
		return fmt.Errorf("%s timed out after %s for event %s\nOutput: %s", p.Command, p.Timeout, job.Identifier, output.String())
	}
}

// buildArgs assembles the archiver command line for job.
func (p *ProtectArchiver) buildArgs(job Job) []string {
	return []string{
		"download",
		"--address", p.Address,
		"--username", p.Username,
		"--password", p.Password,
		"--start", job.StartTime.Format(timeLayout),
		"--end", job.EndTime.Format(timeLayout),
		camerasArg(job.Cameras),
		"--no-use-subfolders",
		job.OutputDir,
	}
}

// camerasArg renders the camera filter flag. An empty set, or a set of only
// blank names, selects all cameras.
func camerasArg(cameras []string) string {
	var names []string
	for _, c := range cameras {
		if c != "" {
			names = append(names, c)
		}
	}
	if len(names) == 0 {
		return "--cameras=all"
	}
	return "--cameras=" + strings.Join(names, ",")
}

// redactArgs hides the password value in logged command lines.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--password" {
			out[i+1] = "***"
		}
	}
	return out
}
