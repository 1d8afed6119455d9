package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Heracs/MeetingSonar-sub001/internal/interrupt"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	ffmpegResolver *mockFFmpegResolver
	configLoader   *mockConfigLoader
	logger         *mockLoggerFactory
	store          *mockStore
	storeOpener    *mockStoreOpener
	recorder       *mockRecorder
	recorderF      *mockRecorderFactory
	devices        *mockDeviceLister
	job            *mockJob
	transcriber    *mockTranscriberFactory

	// signals feeds the record command's interrupt handler.
	signals chan os.Signal
}

func newTestMocks() *testMocks {
	store := &mockStore{}
	rec := &mockRecorder{}
	job := &mockJob{}
	return &testMocks{
		ffmpegResolver: &mockFFmpegResolver{},
		configLoader:   &mockConfigLoader{},
		logger:         &mockLoggerFactory{},
		store:          store,
		storeOpener:    &mockStoreOpener{store: store},
		recorder:       rec,
		recorderF:      &mockRecorderFactory{recorder: rec},
		devices:        &mockDeviceLister{},
		job:            job,
		transcriber:    &mockTranscriberFactory{job: job},
		signals:        make(chan os.Signal, 2),
	}
}

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

// testOutput captures what a command printed.
type testOutput struct {
	stdout *syncBuffer
	stderr *syncBuffer
}

// testEnv creates a test Env with all dependencies mocked. stdin feeds the
// record command's interactive commands; the state dir is a temp dir.
func testEnv(t *testing.T, stdin string) (*Env, *testMocks, testOutput) {
	t.Helper()

	mocks := newTestMocks()
	out := testOutput{stdout: &syncBuffer{}, stderr: &syncBuffer{}}
	stateDir := filepath.Join(t.TempDir(), "state")

	env := &Env{
		Stdin:  strings.NewReader(stdin),
		Stdout: out.stdout,
		Stderr: out.stderr,
		Getenv: staticEnv(map[string]string{EnvOpenAIAPIKey: "test-openai-key"}),
		Now:    fixedTime(time.Date(2026, 1, 26, 14, 30, 52, 0, time.UTC)),
		StateDir: func() (string, error) {
			return stateDir, nil
		},
		Interrupts: func(ctx context.Context) (*interrupt.Handler, context.Context) {
			return interrupt.NewHandlerWithOptions(ctx, interrupt.Options{
				SigCh:  mocks.signals,
				Stderr: out.stderr,
			})
		},
		FFmpegResolver:     mocks.ffmpegResolver,
		ConfigLoader:       mocks.configLoader,
		LoggerFactory:      mocks.logger,
		StoreOpener:        mocks.storeOpener,
		RecorderFactory:    mocks.recorderF,
		DeviceLister:       mocks.devices,
		TranscriberFactory: mocks.transcriber,
	}
	return env, mocks, out
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// fixedTime returns a function that always returns the given time.
func fixedTime(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// staticEnv returns a getenv function that returns values from the given map.
func staticEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

// createTestAudioFile creates a temporary audio file for testing.
func createTestAudioFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake audio content"), 0644); err != nil {
		t.Fatalf("failed to create test audio file: %v", err)
	}
	return path
}

// idleStdin returns a reader that blocks until the test ends, so the
// session only stops through signals or the recorder.
func idleStdin(t *testing.T) io.Reader {
	t.Helper()
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	return r
}
