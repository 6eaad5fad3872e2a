package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"go-media-bot/internal/models"
	"go-media-bot/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

type runStep func(ctx context.Context, inv Invocation) (*RunOutput, error)

// fakeRunner replays steps in order; the last step repeats.
type fakeRunner struct {
	mu    sync.Mutex
	calls []Invocation
	steps []runStep
}

func (f *fakeRunner) Run(ctx context.Context, inv Invocation) (*RunOutput, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, inv)
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	step := f.steps[idx]
	f.mu.Unlock()
	return step(ctx, inv)
}

func (f *fakeRunner) Calls() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Invocation(nil), f.calls...)
}

// produce writes a sparse file of the given size into the workspace.
func produce(name string, size int64) runStep {
	return func(ctx context.Context, inv Invocation) (*RunOutput, error) {
		path := filepath.Join(filepath.Dir(inv.OutputTemplate), name)
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
		return &RunOutput{ExitCode: 0}, f.Close()
	}
}

func exitWith(code int, stderr string) runStep {
	return func(ctx context.Context, inv Invocation) (*RunOutput, error) {
		return &RunOutput{ExitCode: code, Stderr: stderr}, nil
	}
}

func hang(ctx context.Context, inv Invocation) (*RunOutput, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestDownloader(t *testing.T, runner Runner, maxSize int64) (*Downloader, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "ws")
	d := NewDownloader(Options{
		Runner:      runner,
		Workspaces:  workspace.NewManager(root),
		Timeout:     5 * time.Second,
		MaxFileSize: maxSize,
	})
	return d, root
}

func assertRootEmpty(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace root should hold no leftover workspaces")
}

func TestNewDownloader_Defaults(t *testing.T) {
	d := NewDownloader(Options{})

	assert.Equal(t, DefaultTimeout, d.timeout)
	assert.Equal(t, DefaultReducedHeight, d.reducedHeight)
	assert.NotNil(t, d.runner)
	assert.NotNil(t, d.workspaces)
	assert.NotNil(t, d.slots)
}

func TestDownload_Success(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{produce("My Clip.mp4", 10*mb)}}
	d, root := newTestDownloader(t, runner, 49*mb)

	req := models.NewRequest("https://tiktok.com/@x/video/1", 1)
	res := d.Download(context.Background(), req)

	require.True(t, res.Success(), "unexpected failure: %v", res.Err)
	assert.Equal(t, "My Clip", res.Title)
	assert.Equal(t, int64(10*mb), res.Size)
	assert.Equal(t, filepath.Join(root, req.ID+"-best", "My Clip.mp4"), res.FilePath)
	assert.Equal(t, models.QualityBest, res.Quality)
	assert.False(t, res.Retried)
	assert.NotEmpty(t, res.Checksum)
	assert.Equal(t, req.Workspace, res.Workspace)

	calls := runner.Calls()
	require.Len(t, calls, 1, "no retry for an in-limit file")
	assert.Equal(t, formatBest, calls[0].Profile.Format)
	assert.Equal(t, filepath.Join(root, req.ID+"-best", OutputTemplateName), calls[0].OutputTemplate)

	// The file stays until delivery is done.
	_, err := os.Stat(res.FilePath)
	require.NoError(t, err)

	d.Release(res)
	assert.Empty(t, res.Workspace)
	assertRootEmpty(t, root)
}

func TestDownload_OversizeRetriesOnceAtReducedQuality(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{
		produce("Big.mp4", 60*mb),
		produce("Big.mp4", 20*mb),
	}}
	d, root := newTestDownloader(t, runner, 49*mb)

	res := d.Download(context.Background(), models.NewRequest("https://youtube.com/watch?v=1", 1))

	require.True(t, res.Success())
	assert.True(t, res.Retried)
	assert.Equal(t, models.QualityReduced, res.Quality)
	assert.Equal(t, int64(20*mb), res.Size)

	calls := runner.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, models.QualityReduced, calls[1].Profile.Quality)
	assert.Contains(t, calls[1].Profile.Format, "height<=480")
	assert.NotEqual(t, filepath.Dir(calls[0].OutputTemplate), filepath.Dir(calls[1].OutputTemplate),
		"each attempt gets its own workspace")

	d.Release(res)
	assertRootEmpty(t, root)
}

func TestDownload_RetrySurvivesLeftoverWorkspace(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("needs POSIX permission enforcement")
	}
	// The first workspace cannot be removed: it holds a file in a read-only directory.
	undeletable := func(ctx context.Context, inv Invocation) (*RunOutput, error) {
		locked := filepath.Join(filepath.Dir(inv.OutputTemplate), "locked")
		require.NoError(t, os.Mkdir(locked, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(locked, "part"), []byte("x"), 0o600))
		require.NoError(t, os.Chmod(locked, 0o500))
		t.Cleanup(func() { _ = os.Chmod(locked, 0o750) })
		return produce("Big.mp4", 60*mb)(ctx, inv)
	}
	runner := &fakeRunner{steps: []runStep{undeletable, produce("Big.mp4", 20*mb)}}
	d, _ := newTestDownloader(t, runner, 49*mb)

	res := d.Download(context.Background(), models.NewRequest("https://youtube.com/watch?v=1", 1))

	require.True(t, res.Success(), "unexpected failure: %v", res.Err)
	assert.Equal(t, models.QualityReduced, res.Quality)
	assert.Equal(t, int64(20*mb), res.Size)
	d.Release(res)
}

func TestDownload_OversizeAfterRetryIsReturnedAsIs(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{produce("Huge.webm", 60*mb)}}
	d, root := newTestDownloader(t, runner, 49*mb)

	res := d.Download(context.Background(), models.NewRequest("https://example.com/v", 1))

	require.True(t, res.Success())
	assert.True(t, res.Retried)
	assert.Equal(t, int64(60*mb), res.Size)
	assert.Len(t, runner.Calls(), 2, "never a third attempt")

	d.Release(res)
	assertRootEmpty(t, root)
}

func TestDownload_RetryFailureIsReturned(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{
		produce("Big.mp4", 60*mb),
		exitWith(1, "ERROR: Video unavailable"),
	}}
	d, root := newTestDownloader(t, runner, 49*mb)

	res := d.Download(context.Background(), models.NewRequest("https://example.com/v", 1))

	assert.False(t, res.Success())
	assert.True(t, res.Retried)
	assert.Equal(t, ReasonUnavailable, res.Reason)
	assert.Len(t, runner.Calls(), 2)
	assertRootEmpty(t, root)
}

func TestDownload_NoLimitSkipsRetry(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{produce("Big.mp4", 60*mb)}}
	d, _ := newTestDownloader(t, runner, 0)

	res := d.Download(context.Background(), models.NewRequest("https://example.com/v", 1))

	require.True(t, res.Success())
	assert.Len(t, runner.Calls(), 1)
	d.Release(res)
}

func TestDownload_Timeout(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{hang}}
	root := filepath.Join(t.TempDir(), "ws")
	d := NewDownloader(Options{
		Runner:     runner,
		Workspaces: workspace.NewManager(root),
		Timeout:    50 * time.Millisecond,
	})

	start := time.Now()
	res := d.Download(context.Background(), models.NewRequest("https://example.com/v", 1))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, res.Success())
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.Empty(t, res.Workspace)
	assertRootEmpty(t, root)
}

func TestDownload_ParentCancelIsNotTimeout(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{hang}}
	d, root := newTestDownloader(t, runner, 49*mb)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	res := d.Download(ctx, models.NewRequest("https://example.com/v", 1))

	assert.False(t, res.Success())
	assert.False(t, errors.Is(res.Err, ErrTimeout))
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, ReasonGeneric, res.Reason)
	assertRootEmpty(t, root)
}

func TestDownload_ClassifiedToolFailure(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{exitWith(1, "ERROR: [Instagram] abc: This Video Is PRIVATE")}}
	d, root := newTestDownloader(t, runner, 49*mb)

	res := d.Download(context.Background(), models.NewRequest("https://instagram.com/p/abc", 1))

	assert.False(t, res.Success())
	var toolErr *ToolError
	require.ErrorAs(t, res.Err, &toolErr)
	assert.Equal(t, 1, toolErr.ExitCode)
	assert.ErrorIs(t, res.Err, ErrToolFailure)
	assert.Equal(t, ReasonPrivate, res.Reason)
	assert.NotContains(t, res.Reason, "ERROR", "raw tool output never reaches the user")
	assert.Len(t, runner.Calls(), 1, "tool failures are not retried")
	assertRootEmpty(t, root)
}

func TestDownload_SpawnFailureIsVerbatim(t *testing.T) {
	spawnErr := errors.New(`exec: "yt-dlp": executable file not found in $PATH`)
	runner := &fakeRunner{steps: []runStep{func(ctx context.Context, inv Invocation) (*RunOutput, error) {
		return nil, spawnErr
	}}}
	d, root := newTestDownloader(t, runner, 49*mb)

	res := d.Download(context.Background(), models.NewRequest("https://example.com/v", 1))

	assert.False(t, res.Success())
	assert.ErrorIs(t, res.Err, ErrSpawn)
	assert.ErrorIs(t, res.Err, spawnErr)
	assert.Equal(t, spawnErr.Error(), res.Reason)
	assertRootEmpty(t, root)
}

func TestDownload_NoOutputProduced(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{func(ctx context.Context, inv Invocation) (*RunOutput, error) {
		dir := filepath.Dir(inv.OutputTemplate)
		// Leftovers that are not video containers.
		if err := os.WriteFile(filepath.Join(dir, "clip.mp4.part"), []byte("x"), 0o600); err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(dir, "thumb.jpg"), []byte("x"), 0o600); err != nil {
			return nil, err
		}
		return &RunOutput{ExitCode: 0}, nil
	}}}
	d, root := newTestDownloader(t, runner, 49*mb)

	res := d.Download(context.Background(), models.NewRequest("https://example.com/v", 1))

	assert.False(t, res.Success())
	assert.ErrorIs(t, res.Err, ErrNoOutput)
	assert.Equal(t, ReasonNoOutput, res.Reason)
	assertRootEmpty(t, root)
}

func TestDownload_WorkspaceFailure(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{produce("x.mp4", 1)}}
	// A regular file where the root directory should be.
	root := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o600))
	d := NewDownloader(Options{Runner: runner, Workspaces: workspace.NewManager(root)})

	res := d.Download(context.Background(), models.NewRequest("https://example.com/v", 1))

	assert.False(t, res.Success())
	assert.ErrorIs(t, res.Err, workspace.ErrFileSystem)
	assert.Equal(t, ReasonGeneric, res.Reason)
	assert.Empty(t, runner.Calls(), "yt-dlp must not run without a workspace")
}

func TestDownload_InstagramProfile(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{produce("Reel.mp4", 1*mb)}}
	d, _ := newTestDownloader(t, runner, 49*mb)

	res := d.Download(context.Background(), models.NewRequest("https://www.instagram.com/reel/XYZ/", 1))
	require.True(t, res.Success())
	d.Release(res)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, formatInstagramBest, calls[0].Profile.Format)
	assert.Contains(t, calls[0].Profile.ExtraArgs, "--recode-video")
}

func TestDownload_FirstVideoFileWins(t *testing.T) {
	runner := &fakeRunner{steps: []runStep{func(ctx context.Context, inv Invocation) (*RunOutput, error) {
		dir := filepath.Dir(inv.OutputTemplate)
		for _, name := range []string{"b.mkv", "a.MOV", "c.webm"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
				return nil, err
			}
		}
		return &RunOutput{ExitCode: 0}, nil
	}}}
	d, _ := newTestDownloader(t, runner, 49*mb)

	res := d.Download(context.Background(), models.NewRequest("https://example.com/v", 1))
	require.True(t, res.Success())
	assert.Equal(t, "a", res.Title)
	d.Release(res)
}

func TestDownload_ConcurrencyCap(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	step := func(ctx context.Context, inv Invocation) (*RunOutput, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return produce("v.mp4", 1)(ctx, inv)
	}
	runner := &fakeRunner{steps: []runStep{step}}
	root := filepath.Join(t.TempDir(), "ws")
	d := NewDownloader(Options{
		Runner:        runner,
		Workspaces:    workspace.NewManager(root),
		MaxConcurrent: 1,
	})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			res := d.Download(context.Background(), models.NewRequest("https://example.com/v", user))
			assert.True(t, res.Success())
			d.Release(res)
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Len(t, runner.Calls(), 3)
	assertRootEmpty(t, root)
}

func TestReleaseNilAndEmpty(t *testing.T) {
	d, _ := newTestDownloader(t, &fakeRunner{steps: []runStep{hang}}, 0)
	d.Release(nil)
	d.Release(&models.Result{})
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "My Clip", titleFromFilename("/tmp/ws/req/My Clip.mp4"))
	assert.Equal(t, "a.b", titleFromFilename("a.b.webm"))
	assert.Equal(t, "NA", titleFromFilename("NA.mp4"))
}
