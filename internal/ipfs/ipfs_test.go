package ipfs

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryHash(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    string
		wantErr bool
	}{
		{
			name: "hash per file with trailing newline",
			out:  "Qmaaa\nQmbbb\nQmccc\n",
			want: "Qmbbb",
		},
		{
			name: "trailing empty line",
			out:  "X\nY\n\n",
			want: "Y",
		},
		{
			name: "no trailing newline",
			out:  "QmFile\nQmDir",
			want: "QmFile",
		},
		{
			name:    "empty output",
			out:     "",
			wantErr: true,
		},
		{
			name:    "single line",
			out:     "QmOnly\n",
			wantErr: true,
		},
		{
			name:    "only blank lines",
			out:     "\n\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DirectoryHash(tt.out)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// stubBinary writes an executable shell script and returns its path.
func stubBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub shell scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-ipfs")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	return path
}

func TestShellClientAdd(t *testing.T) {
	bin := stubBinary(t, `printf 'QmFile\nQmDir\n\n'`)
	client := NewShellClient(bin)

	hash, err := client.Add(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "QmDir", hash)
}

func TestShellClientAdd_StderrIsFatal(t *testing.T) {
	// Stderr output fails the publish even when the process exits zero.
	bin := stubBinary(t, `printf 'QmFile\nQmDir\n\n'; echo 'some warning' >&2`)
	client := NewShellClient(bin)

	_, err := client.Add(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "some warning")
}

func TestShellClientAdd_NonZeroExit(t *testing.T) {
	bin := stubBinary(t, `exit 3`)
	client := NewShellClient(bin)

	_, err := client.Add(context.Background(), t.TempDir())
	require.Error(t, err)
}

func TestShellClientAdd_MissingBinary(t *testing.T) {
	client := NewShellClient(filepath.Join(t.TempDir(), "no-such-binary"))

	_, err := client.Add(context.Background(), t.TempDir())
	require.Error(t, err)
}
