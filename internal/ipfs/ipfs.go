package ipfs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Client provides content-addressing operations for local directories
type Client interface {
	// Add publishes dir recursively and returns the top-level directory hash
	Add(ctx context.Context, dir string) (string, error)
}

// ShellClient implements Client by shelling out to the ipfs command
type ShellClient struct {
	binary string
}

// NewShellClient creates a new ipfs client that uses the given binary
func NewShellClient(binary string) *ShellClient {
	return &ShellClient{binary: binary}
}

// Add runs `ipfs add -q -r` on dir and extracts the directory hash from
// its output. The call blocks until the ipfs process exits; cancelling
// ctx kills it. Any stderr output is treated as fatal, matching the
// behavior callers have depended on so far (the add command is expected
// to stay silent on stderr when it succeeds).
func (c *ShellClient) Add(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary, "add", "-q", "-r", dir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if stderr.Len() > 0 {
		return "", fmt.Errorf("ipfs add reported errors: %s", strings.TrimSpace(stderr.String()))
	}
	if runErr != nil {
		return "", fmt.Errorf("ipfs add failed: %w", runErr)
	}

	return DirectoryHash(stdout.String())
}

// DirectoryHash extracts the top-level directory hash from the output of
// `ipfs add -q -r`: one hash line per added file with the directory's
// hash second to last, followed by a trailing empty line. The final
// empty element produced by splitting a newline-terminated string is
// ignored. "Qmaaa\nQmbbb\nQmccc\n" yields "Qmbbb".
//
// This is a hard dependency on the external tool's output format; keep
// any format change confined to this function.
func DirectoryHash(out string) (string, error) {
	lines := strings.Split(out, "\n")
	// Drop the artifact of the trailing newline, not a real line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) < 2 {
		return "", fmt.Errorf("unexpected ipfs add output: %q", out)
	}
	hash := lines[len(lines)-2]
	if hash == "" {
		return "", fmt.Errorf("unexpected ipfs add output: empty hash line in %q", out)
	}
	return hash, nil
}
