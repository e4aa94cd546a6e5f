package xmpp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	out string
	err error
}

func (f *fakeExecer) Exec(ctx context.Context, container string, cmd []string) (string, error) {
	return f.out, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeAccount(t *testing.T, dataDir, host, user string) {
	t.Helper()
	dir := filepath.Join(dataDir, host, "accounts")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, user+".dat"), []byte("return {}"), 0o644))
}

func TestListUsers_FiltersContainerOutput(t *testing.T) {
	execer := &fakeExecer{out: `
prosodyctl: warning: configuration out of date
alice@meet.example.com
** startup notice **
bob@meet.example.com
not a jid line
`}
	l := NewLister(execer, "meet-prosody-1", t.TempDir(), discard())

	users, warnings := l.ListUsers(context.Background())
	assert.Equal(t, []string{"alice@meet.example.com", "bob@meet.example.com"}, users)
	assert.Empty(t, warnings)
}

func TestListUsers_UnionsBothSources(t *testing.T) {
	dataDir := t.TempDir()
	writeAccount(t, dataDir, "meet%2eexample%2ecom", "bob")
	writeAccount(t, dataDir, "meet%2eexample%2ecom", "carol")

	execer := &fakeExecer{out: "alice@meet.example.com\nbob@meet.example.com\n"}
	l := NewLister(execer, "meet-prosody-1", dataDir, discard())

	users, warnings := l.ListUsers(context.Background())
	assert.Equal(t, []string{
		"alice@meet.example.com",
		"bob@meet.example.com",
		"carol@meet.example.com",
	}, users)
	assert.Empty(t, warnings)
}

func TestListUsers_ContainerFailureIsWarning(t *testing.T) {
	dataDir := t.TempDir()
	writeAccount(t, dataDir, "meet%2eexample%2ecom", "dave")

	execer := &fakeExecer{err: errors.New("no such container")}
	l := NewLister(execer, "meet-prosody-1", dataDir, discard())

	users, warnings := l.ListUsers(context.Background())
	assert.Equal(t, []string{"dave@meet.example.com"}, users)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "no such container")
}

func TestListUsers_NilExecerIsWarning(t *testing.T) {
	l := NewLister(nil, "", t.TempDir(), discard())

	users, warnings := l.ListUsers(context.Background())
	assert.Empty(t, users)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "container runtime unavailable")
}

func TestListUsers_MissingDataDirIsWarning(t *testing.T) {
	execer := &fakeExecer{out: "alice@meet.example.com\n"}
	l := NewLister(execer, "meet-prosody-1", "/nonexistent/data", discard())

	users, warnings := l.ListUsers(context.Background())
	assert.Equal(t, []string{"alice@meet.example.com"}, users)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "data dir scan")
}

func TestDecodeNode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"meet%2eexample%2ecom", "meet.example.com"},
		{"alice", "alice"},
		{"a%2db", "a-b"},
		{"broken%zz", "broken%zz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, decodeNode(tt.in))
	}
}
