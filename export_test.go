package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v2"
)

type fakeSource struct {
	rows     []PermissionRow
	err      error
	closeErr error
	closed   bool
}

func (s *fakeSource) Rows(ctx context.Context) ([]PermissionRow, error) {
	if s.closed {
		return nil, errors.New("source already closed")
	}
	return s.rows, s.err
}

func (s *fakeSource) Close() error {
	s.closed = true
	return s.closeErr
}

func fakeConnector(src *fakeSource, err error) Connector {
	return func(ctx context.Context, cfg Config) (Source, error) {
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

func testExporter(t *testing.T, connect Connector) exporter {
	return exporter{
		log:     zaptest.NewLogger(t).Sugar(),
		connect: connect,
		stdout:  io.Discard,
	}
}

func TestExportRun(t *testing.T) {
	src := &fakeSource{rows: []PermissionRow{
		grantRow("alice", "SELECT", "tbl1"),
		grantRow("alice", "UPDATE", "tbl1"),
		grantRow("bob", "", ""),
	}}
	out := filepath.Join(t.TempDir(), "export_users.sql")

	path, err := testExporter(t, fakeConnector(src, nil)).run(context.Background(), Config{Output: out})
	require.NoError(t, err)
	assert.Equal(t, out, path)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, src.closed)

	buf, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "-- User: alice\nCREATE USER [alice];\nGRANT SELECT TO [alice] ON [tbl1];\nGRANT UPDATE TO [alice] ON [tbl1];\n\n-- User: bob\nCREATE USER [bob];\n", string(buf))
}

func TestExportQueryFailureLeavesFileAlone(t *testing.T) {
	dir := t.TempDir()

	src := &fakeSource{err: queryError(io.ErrUnexpectedEOF, "Select database permissions")}
	missing := filepath.Join(dir, "never.sql")
	_, err := testExporter(t, fakeConnector(src, nil)).run(context.Background(), Config{Output: missing})
	require.Error(t, err)
	assert.Equal(t, StageQuery, errorStage(err))
	assert.Equal(t, 3, exitCode(err))
	assert.True(t, src.closed)
	_, statErr := os.Stat(missing)
	assert.True(t, os.IsNotExist(statErr))

	src = &fakeSource{err: queryError(io.ErrUnexpectedEOF, "Select database permissions")}
	existing := filepath.Join(dir, "existing.sql")
	require.NoError(t, os.WriteFile(existing, []byte("keep me\n"), 0o644))
	_, err = testExporter(t, fakeConnector(src, nil)).run(context.Background(), Config{Output: existing})
	require.Error(t, err)
	assert.True(t, src.closed)
	buf, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me\n", string(buf))
}

func TestExportConnectFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.sql")
	connErr := connectionError(io.EOF, "Connect to %#v", "sql01")

	_, err := testExporter(t, fakeConnector(nil, connErr)).run(context.Background(), Config{Output: out})
	require.Error(t, err)
	assert.Equal(t, StageConnect, errorStage(err))
	assert.Equal(t, 2, exitCode(err))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportWriteFailureCloses(t *testing.T) {
	src := &fakeSource{rows: []PermissionRow{grantRow("alice", "", "")}}
	out := filepath.Join(t.TempDir(), "no", "such", "dir.sql")

	_, err := testExporter(t, fakeConnector(src, nil)).run(context.Background(), Config{Output: out})
	require.Error(t, err)
	assert.Equal(t, StageWrite, errorStage(err))
	assert.True(t, src.closed)
}

func TestExportCloseErrorIsNotFatal(t *testing.T) {
	src := &fakeSource{rows: []PermissionRow{grantRow("alice", "", "")}, closeErr: io.ErrClosedPipe}
	out := filepath.Join(t.TempDir(), "out.sql")

	path, err := testExporter(t, fakeConnector(src, nil)).run(context.Background(), Config{Output: out})
	require.NoError(t, err)
	assert.Equal(t, out, path)
}

func TestExportDryRun(t *testing.T) {
	src := &fakeSource{rows: []PermissionRow{grantRow("alice", "SELECT", "")}}
	dir := t.TempDir()
	out := filepath.Join(dir, "out.sql")

	var stdout bytes.Buffer
	e := testExporter(t, fakeConnector(src, nil))
	e.dry = true
	e.stdout = &stdout

	path, err := e.run(context.Background(), Config{Output: out})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "-- User: alice\nCREATE USER [alice];\nGRANT SELECT TO [alice];\n", stdout.String())
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportUnknownDriver(t *testing.T) {
	_, err := testExporter(t, nil).run(context.Background(), Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Equal(t, StageConfig, errorStage(err))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	report(&buf, "")
	assert.Empty(t, buf.String())

	report(&buf, "/tmp/export_users.sql")
	assert.True(t, strings.HasSuffix(buf.String(), "exported to /tmp/export_users.sql\n"))
}

func TestRootCmdExample(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd(&mainOptions{})
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--example"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "driver: sqlserver")

	cfg := Config{}
	require.NoError(t, yaml.UnmarshalStrict(buf.Bytes(), &cfg))
	assert.Equal(t, "sql01.example.com", cfg.Server)
}

func TestRootCmdMissingSettings(t *testing.T) {
	for _, k := range []string{"DRIVER", "SERVER", "DATABASE", "USER"} {
		t.Setenv(envPrefix+k, "")
	}

	cmd := newRootCmd(&mainOptions{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--env", "", "--server", "sql01"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, StageConfig, errorStage(err))
	assert.Contains(t, err.Error(), "Missing database, user")
}
