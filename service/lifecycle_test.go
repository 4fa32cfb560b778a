package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalyzer replays scripted progress and blocks until released.
type fakeAnalyzer struct {
	progress    []int
	release     chan struct{}
	sentCalled  chan struct{}
	honorCancel bool
	raw         any
	err         error

	mu    sync.Mutex
	calls int
}

func newFakeAnalyzer(raw any) *fakeAnalyzer {
	return &fakeAnalyzer{raw: raw, sentCalled: make(chan struct{}, 1)}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, doc model.Document, body io.Reader, hooks UploadHooks) (any, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	_, _ = io.Copy(io.Discard, body)
	for _, p := range f.progress {
		hooks.progress(p)
	}
	hooks.sent()
	select {
	case f.sentCalled <- struct{}{}:
	default:
	}

	if f.release != nil {
		if f.honorCancel {
			select {
			case <-f.release:
			case <-ctx.Done():
				return nil, transportFailure(ctx.Err())
			}
		} else {
			<-f.release
		}
	}
	return f.raw, f.err
}

func (f *fakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu     sync.Mutex
	events []Snapshot
}

func (r *recorder) listen(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) states() []model.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.State
	for _, e := range r.events {
		if len(out) == 0 || out[len(out)-1] != e.State {
			out = append(out, e.State)
		}
	}
	return out
}

func (r *recorder) progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, e := range r.events {
		out = append(out, e.Progress)
	}
	return out
}

func testPolicy() Policy {
	return Policy{
		MaxFileSize:   16 << 20,
		AcceptedTypes: []string{model.MediaTypePDF, model.MediaTypeDOCX, model.MediaTypeText},
		Timeout:       5 * time.Second,
	}
}

func pdf(size int64) model.Document {
	return model.Document{Filename: "contract.pdf", Size: size, MediaType: model.MediaTypePDF}
}

var paymentResponse = map[string]any{
	"clauses": []any{map[string]any{"text": "Net 30 payment", "type": "Payment"}},
}

func TestLifecycleSubmitSuccess(t *testing.T) {
	analyzer := newFakeAnalyzer(paymentResponse)
	analyzer.progress = []int{10, 50, 100}
	lc := NewLifecycle(analyzer, testPolicy())
	rec := &recorder{}
	lc.Subscribe(rec.listen)

	snap, err := lc.Submit(context.Background(), pdf(1024), strings.NewReader("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, model.StateSucceeded, snap.State)
	require.Len(t, snap.Clauses, 1)
	assert.Equal(t, model.RiskUnknown, snap.Clauses[0].Risk)
	assert.Equal(t, []model.State{
		model.StateValidating,
		model.StateUploading,
		model.StateAnalyzing,
		model.StateSucceeded,
	}, rec.states())
	assert.Equal(t, model.StateSucceeded, lc.State())
}

func TestLifecycleRejectsOversizedFile(t *testing.T) {
	analyzer := newFakeAnalyzer(paymentResponse)
	lc := NewLifecycle(analyzer, testPolicy())
	rec := &recorder{}
	lc.Subscribe(rec.listen)

	_, err := lc.Start(context.Background(), pdf(20<<20), strings.NewReader(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	snap := lc.Snapshot()
	assert.Equal(t, model.StateFailed, snap.State)
	assert.Equal(t, "file_too_large", snap.ErrorCode)
	assert.Equal(t, "File size must be less than 16MB.", snap.Message)
	assert.Equal(t, []model.State{model.StateValidating, model.StateFailed}, rec.states())
	assert.Zero(t, analyzer.Calls())
}

func TestLifecycleValidationOrder(t *testing.T) {
	lc := NewLifecycle(newFakeAnalyzer(nil), testPolicy())

	doc := model.Document{Filename: "scan.png", Size: 20 << 20, MediaType: "image/png"}
	_, err := lc.Start(context.Background(), doc, strings.NewReader(""))

	assert.ErrorIs(t, err, ErrInvalidFileType)
}

func TestLifecycleAcceptsFileAtLimit(t *testing.T) {
	lc := NewLifecycle(newFakeAnalyzer([]any{}), testPolicy())

	snap, err := lc.Submit(context.Background(), pdf(16<<20), strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, model.StateSucceeded, snap.State)
	assert.Empty(t, snap.Clauses)
}

func TestLifecycleRejectsSecondSubmission(t *testing.T) {
	analyzer := newFakeAnalyzer(paymentResponse)
	analyzer.release = make(chan struct{})
	lc := NewLifecycle(analyzer, testPolicy())

	sub, err := lc.Start(context.Background(), pdf(10), strings.NewReader("a"))
	require.NoError(t, err)
	<-analyzer.sentCalled

	_, err = lc.Start(context.Background(), pdf(10), strings.NewReader("b"))
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, model.StateAnalyzing, lc.State())

	close(analyzer.release)
	snap, err := sub.Result()
	require.NoError(t, err)
	assert.Equal(t, model.StateSucceeded, snap.State)
	assert.Equal(t, 1, analyzer.Calls())
}

func TestLifecycleResetDiscardsStaleResult(t *testing.T) {
	analyzer := newFakeAnalyzer(paymentResponse)
	analyzer.release = make(chan struct{})
	lc := NewLifecycle(analyzer, testPolicy())

	sub, err := lc.Start(context.Background(), pdf(10), strings.NewReader("a"))
	require.NoError(t, err)
	<-analyzer.sentCalled
	require.Equal(t, model.StateAnalyzing, lc.State())

	lc.Reset()
	close(analyzer.release)

	_, err = sub.Result()
	assert.ErrorIs(t, err, ErrStaleSubmission)

	snap := lc.Snapshot()
	assert.Equal(t, model.StateIdle, snap.State)
	assert.Empty(t, snap.Clauses)
	assert.Nil(t, snap.Document)
}

func TestLifecycleResetCancelsUpload(t *testing.T) {
	analyzer := newFakeAnalyzer(paymentResponse)
	analyzer.release = make(chan struct{})
	analyzer.honorCancel = true
	lc := NewLifecycle(analyzer, testPolicy())

	sub, err := lc.Start(context.Background(), pdf(10), strings.NewReader("a"))
	require.NoError(t, err)
	<-analyzer.sentCalled

	lc.Reset()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not finish after reset")
	}
	_, err = sub.Result()
	assert.ErrorIs(t, err, ErrStaleSubmission)
	assert.Equal(t, model.StateIdle, lc.State())
}

func TestLifecycleNewSubmissionAfterReset(t *testing.T) {
	first := newFakeAnalyzer(paymentResponse)
	first.release = make(chan struct{})
	lc := NewLifecycle(first, testPolicy())

	stale, err := lc.Start(context.Background(), pdf(10), strings.NewReader("a"))
	require.NoError(t, err)
	<-first.sentCalled
	lc.Reset()

	lc.analyzer = newFakeAnalyzer([]any{})
	snap, err := lc.Submit(context.Background(), pdf(10), strings.NewReader("b"))
	require.NoError(t, err)
	assert.Equal(t, model.StateSucceeded, snap.State)
	assert.Empty(t, snap.Clauses)

	close(first.release)
	_, err = stale.Result()
	assert.ErrorIs(t, err, ErrStaleSubmission)

	assert.Equal(t, model.StateSucceeded, lc.State())
	assert.Empty(t, lc.Clauses())
}

func TestLifecycleProgressIsClampedAndMonotonic(t *testing.T) {
	analyzer := newFakeAnalyzer([]any{})
	analyzer.progress = []int{-5, 20, 10, 60, 60, 150}
	lc := NewLifecycle(analyzer, testPolicy())
	rec := &recorder{}
	lc.Subscribe(rec.listen)

	_, err := lc.Submit(context.Background(), pdf(10), strings.NewReader("a"))
	require.NoError(t, err)

	progress := rec.progress()
	for i, p := range progress {
		assert.GreaterOrEqual(t, p, 0)
		assert.LessOrEqual(t, p, 100)
		if i > 0 {
			assert.GreaterOrEqual(t, p, progress[i-1])
		}
	}
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestLifecycleTimeout(t *testing.T) {
	analyzer := newFakeAnalyzer(paymentResponse)
	analyzer.release = make(chan struct{})
	analyzer.honorCancel = true
	defer close(analyzer.release)

	policy := testPolicy()
	policy.Timeout = 20 * time.Millisecond
	lc := NewLifecycle(analyzer, policy)

	snap, err := lc.Submit(context.Background(), pdf(10), strings.NewReader("a"))
	require.Error(t, err)
	assert.Equal(t, "timeout", Code(err))
	assert.Equal(t, model.StateFailed, snap.State)
	assert.Empty(t, snap.Clauses)
}

func TestLifecycleFailureThenResubmit(t *testing.T) {
	analyzer := newFakeAnalyzer(nil)
	analyzer.err = &TransportError{Kind: TransportHTTPStatus, StatusCode: 500, Message: "Analysis failed"}
	lc := NewLifecycle(analyzer, testPolicy())

	snap, err := lc.Submit(context.Background(), pdf(10), strings.NewReader("a"))
	require.Error(t, err)
	assert.Equal(t, model.StateFailed, snap.State)
	assert.Equal(t, "Analysis failed", snap.Message)

	analyzer.err = nil
	analyzer.raw = paymentResponse
	snap, err = lc.Submit(context.Background(), pdf(10), strings.NewReader("a"))
	require.NoError(t, err)
	assert.Equal(t, model.StateSucceeded, snap.State)
	assert.Empty(t, snap.Message)
	assert.Len(t, snap.Clauses, 1)
}

func TestLifecycleUnexpectedShapeFails(t *testing.T) {
	lc := NewLifecycle(newFakeAnalyzer(map[string]any{"status": "ok"}), testPolicy())

	snap, err := lc.Submit(context.Background(), pdf(10), strings.NewReader("a"))
	assert.ErrorIs(t, err, ErrUnexpectedShape)
	assert.Equal(t, model.StateFailed, snap.State)
}

func TestLifecycleSnapshotIsCopy(t *testing.T) {
	lc := NewLifecycle(newFakeAnalyzer(paymentResponse), testPolicy())
	_, err := lc.Submit(context.Background(), pdf(10), strings.NewReader("a"))
	require.NoError(t, err)

	snap := lc.Snapshot()
	snap.Clauses[0].Text = "changed"
	snap.Clauses[0].Concerns = append(snap.Clauses[0].Concerns, "x")

	fresh := lc.Snapshot()
	assert.Equal(t, "Net 30 payment", fresh.Clauses[0].Text)
	assert.Empty(t, fresh.Clauses[0].Concerns)
}

func TestLifecycleResetFromTerminal(t *testing.T) {
	analyzer := newFakeAnalyzer(nil)
	analyzer.err = errors.New("boom")
	lc := NewLifecycle(analyzer, testPolicy())

	_, err := lc.Submit(context.Background(), pdf(10), strings.NewReader("a"))
	require.Error(t, err)

	lc.Reset()
	snap := lc.Snapshot()
	assert.Equal(t, model.StateIdle, snap.State)
	assert.Empty(t, snap.ErrorCode)
	assert.Zero(t, snap.Progress)
}
