package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/basilehenry/ipfs-publish/internal/config"
)

// Runner executes the pin+publish step on the remote node
type Runner interface {
	// PinPublish pins hash on the remote node and publishes it under the
	// node's name record, returning whatever the remote side printed
	PinPublish(ctx context.Context, hash string) (string, error)
}

// SSHRunner implements Runner by shelling out to the ssh command
type SSHRunner struct {
	binary  string
	target  string
	command string
}

// NewSSHRunner creates a runner that connects to target (user@host) and
// executes the command template there. The template's {hash} markers are
// replaced with the hash being deployed.
func NewSSHRunner(binary, target, command string) *SSHRunner {
	return &SSHRunner{
		binary:  binary,
		target:  target,
		command: command,
	}
}

// PinPublish runs the remote command over ssh, blocking until it exits.
// The remote side's stderr text is returned verbatim when present,
// otherwise its stdout; a failed ssh invocation is an error.
func (r *SSHRunner) PinPublish(ctx context.Context, hash string) (string, error) {
	remoteCmd := RemoteCommand(r.command, hash)

	cmd := exec.CommandContext(ctx, r.binary, "-t", r.target, remoteCmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("remote pin+publish failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	if stderr.Len() > 0 {
		return stderr.String(), nil
	}
	return stdout.String(), nil
}

// RemoteCommand substitutes hash into every {hash} marker of the
// configured command template.
func RemoteCommand(template, hash string) string {
	return strings.ReplaceAll(template, config.HashPlaceholder, hash)
}
