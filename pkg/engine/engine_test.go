package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openfroyo/confpatch/pkg/blockpatch"
	"github.com/openfroyo/confpatch/pkg/fileio"
	"github.com/openfroyo/confpatch/pkg/stores"
	"github.com/openfroyo/confpatch/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nginxConf = `user http;
include /etc/nginx/sites-enabled/*;
events {
    worker_connections 1024;
}
http {
    include mime.types;
}
`

const nginxPatched = `user http;
# include /etc/nginx/sites-enabled/*;  # disabled: was outside http block
events {
    worker_connections 1024;
}
http {
    include mime.types;
    include /etc/nginx/sites-enabled/*;
}
`

type memJournal struct {
	mu   sync.Mutex
	runs []*stores.Run
}

func (j *memJournal) CreateRun(_ context.Context, run *stores.Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, run)
	return nil
}

func (j *memJournal) all() []*stores.Run {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*stores.Run(nil), j.runs...)
}

func directive(t *testing.T) blockpatch.Directive {
	t.Helper()
	p, ok := blockpatch.LookupPreset(blockpatch.DefaultPresetName)
	require.True(t, ok)
	d, err := p.Directive()
	require.NoError(t, err)
	return d
}

func writeConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nginx.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readConf(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApply(t *testing.T) {
	path := writeConf(t, nginxConf)
	journal := &memJournal{}
	metrics := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "confpatch"})
	e := New(zerolog.Nop(), WithJournal(journal), WithMetrics(metrics))

	out, err := e.Apply(context.Background(), path, directive(t), Options{Recipe: "nginx-sites-enabled"})
	require.NoError(t, err)

	assert.Equal(t, stores.RunStatusChanged, out.Status)
	assert.True(t, out.Written)
	assert.True(t, out.Result.Inserted)
	assert.Equal(t, []int{1}, out.Result.Neutralized)
	assert.Equal(t, fileio.Checksum([]byte(nginxConf)), out.ChecksumBefore)
	assert.Equal(t, fileio.Checksum([]byte(nginxPatched)), out.ChecksumAfter)
	assert.Empty(t, out.BackupPath)
	assert.Empty(t, out.Diff)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, nginxPatched, readConf(t, path))

	// Second run is a no-op.
	again, err := e.Apply(context.Background(), path, directive(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, stores.RunStatusUnchanged, again.Status)
	assert.False(t, again.Written)
	assert.Equal(t, again.ChecksumBefore, again.ChecksumAfter)
	assert.Equal(t, nginxPatched, readConf(t, path))

	runs := journal.all()
	require.Len(t, runs, 2)
	assert.Equal(t, out.RunID, runs[0].ID)
	assert.Equal(t, "nginx-sites-enabled", runs[0].Recipe)
	assert.Equal(t, 1, runs[0].Neutralized)
	assert.True(t, runs[0].Inserted)
	assert.Equal(t, stores.RunStatusUnchanged, runs[1].Status)

	reg := metrics.Registry()
	require.NotNil(t, reg)
	count, err := testutil.GatherAndCount(reg, "confpatch_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestApplyDryRun(t *testing.T) {
	path := writeConf(t, nginxConf)
	journal := &memJournal{}
	e := New(zerolog.Nop(), WithJournal(journal))

	out, err := e.Apply(context.Background(), path, directive(t), Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, stores.RunStatusWouldChange, out.Status)
	assert.False(t, out.Written)
	assert.Equal(t, nginxConf, readConf(t, path))
	assert.Contains(t, out.Diff, "-include /etc/nginx/sites-enabled/*;")
	assert.Contains(t, out.Diff, "+# include /etc/nginx/sites-enabled/*;  # disabled: was outside http block")
	assert.Contains(t, out.Diff, "+    include /etc/nginx/sites-enabled/*;")
	assert.Equal(t, fileio.Checksum([]byte(nginxPatched)), out.ChecksumAfter)

	require.Len(t, journal.all(), 1)
	assert.Equal(t, stores.RunStatusWouldChange, journal.all()[0].Status)
}

func TestApplyBackup(t *testing.T) {
	path := writeConf(t, nginxConf)
	e := New(zerolog.Nop())

	out, err := e.Apply(context.Background(), path, directive(t), Options{Backup: true, Diff: true})
	require.NoError(t, err)

	assert.Equal(t, path+".bak", out.BackupPath)
	assert.Equal(t, nginxConf, readConf(t, out.BackupPath))
	assert.Equal(t, nginxPatched, readConf(t, path))
	assert.NotEmpty(t, out.Diff)
}

func TestApplyThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.conf")
	link := filepath.Join(dir, "nginx.conf")
	require.NoError(t, os.WriteFile(target, []byte("http {\n}\n"), 0644))
	require.NoError(t, os.Symlink(target, link))

	out, err := New(zerolog.Nop()).Apply(context.Background(), link, directive(t), Options{Backup: true})
	require.NoError(t, err)
	assert.True(t, out.Written)
	assert.Equal(t, link, out.Path)

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "link must still be a symlink")

	assert.Equal(t, "http {\n    include /etc/nginx/sites-enabled/*;\n}\n", readConf(t, target))
	assert.Equal(t, "http {\n}\n", readConf(t, out.BackupPath))
	assert.Equal(t, ".bak", filepath.Ext(out.BackupPath))
}

func TestApplyFailures(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		wantKind blockpatch.ErrorKind
	}{
		{
			name:     "missing file",
			wantKind: blockpatch.KindNotFound,
		},
		{
			name:     "block not found",
			content:  strPtr("events {\n}\ninclude /etc/nginx/sites-enabled/*;\n"),
			wantKind: blockpatch.KindStructural,
		},
		{
			name:     "block never closes",
			content:  strPtr("http {\n    server {\n"),
			wantKind: blockpatch.KindMalformedNesting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nginx.conf")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0644))
			}
			journal := &memJournal{}
			e := New(zerolog.Nop(), WithJournal(journal))

			out, err := e.Apply(context.Background(), path, directive(t), Options{Backup: true})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, blockpatch.KindOf(err))
			assert.Contains(t, err.Error(), path)
			assert.Equal(t, stores.RunStatusFailed, out.Status)
			assert.False(t, out.Written)

			if tt.content != nil {
				assert.Equal(t, *tt.content, readConf(t, path), "file must be untouched")
				_, statErr := os.Stat(path + ".bak")
				assert.True(t, os.IsNotExist(statErr), "no backup on failure")
			}

			runs := journal.all()
			require.Len(t, runs, 1)
			assert.Equal(t, stores.RunStatusFailed, runs[0].Status)
			require.NotNil(t, runs[0].Error)
		})
	}
}

func TestApplyCancelled(t *testing.T) {
	path := writeConf(t, nginxConf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(zerolog.Nop()).Apply(ctx, path, directive(t), Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, nginxConf, readConf(t, path))
}

func TestApplyWithSQLiteJournal(t *testing.T) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: filepath.Join(t.TempDir(), "journal.db")})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Migrate(ctx))
	defer store.Close()

	path := writeConf(t, nginxConf)
	out, err := New(zerolog.Nop(), WithJournal(store)).Apply(ctx, path, directive(t), Options{})
	require.NoError(t, err)

	run, err := store.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, path, run.Path)
	assert.Equal(t, stores.RunStatusChanged, run.Status)
	assert.Equal(t, out.ChecksumAfter, run.ChecksumAfter)
}

func TestUnifiedDiff(t *testing.T) {
	diff, err := UnifiedDiff("nginx.conf", "a\n", "a\n")
	require.NoError(t, err)
	assert.Empty(t, diff)

	diff, err = UnifiedDiff("nginx.conf", "a\nb\n", "a\nc\n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(diff, "--- nginx.conf\n+++ nginx.conf (patched)\n"))
	assert.Contains(t, diff, "-b\n")
	assert.Contains(t, diff, "+c\n")
}

func TestWatch(t *testing.T) {
	path := writeConf(t, "http {\n}\n")
	e := New(zerolog.Nop(), WithWatchDebounce(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := directive(t)
	outcomes := make(chan *Outcome, 16)
	done := make(chan error, 1)
	go func() {
		done <- e.Watch(ctx, path, d, Options{}, func(out *Outcome, err error) {
			if err == nil {
				outcomes <- out
			}
		})
	}()

	waitStatus := func(want stores.RunStatus) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case out := <-outcomes:
				if out.Status == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for status %s", want)
			}
		}
	}

	// Initial apply inserts the directive.
	waitStatus(stores.RunStatusChanged)
	assert.Contains(t, readConf(t, path), "    include /etc/nginx/sites-enabled/*;")

	// Replacing the file with an unpatched version triggers a repair.
	require.NoError(t, fileio.WriteAtomic(path, []byte("http {\n    sendfile on;\n}\n"), 0644))
	waitStatus(stores.RunStatusChanged)
	assert.Equal(t, "http {\n    sendfile on;\n    include /etc/nginx/sites-enabled/*;\n}\n", readConf(t, path))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func strPtr(s string) *string { return &s }
