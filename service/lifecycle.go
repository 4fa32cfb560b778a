package service

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"github.com/Kartekeya-Sharma/Contract-Guard/pkg/logger"
)

// Policy is the local acceptance rule applied before a document is sent.
type Policy struct {
	MaxFileSize   int64
	AcceptedTypes []string
	// Timeout bounds a whole submission; zero means no limit.
	Timeout time.Duration
}

// PolicyFromConfig builds the policy from the analysis configuration.
func PolicyFromConfig(cfg *config.AnalysisConfig) Policy {
	return Policy{
		MaxFileSize:   cfg.MaxFileSize,
		AcceptedTypes: cfg.AcceptedTypes,
		Timeout:       cfg.Timeout(),
	}
}

// Validate checks the declared media type first, then the size.
func (p Policy) Validate(doc model.Document) error {
	if !slices.Contains(p.AcceptedTypes, doc.MediaType) {
		return &ValidationError{Err: ErrInvalidFileType, MediaType: doc.MediaType, Size: doc.Size, Limit: p.MaxFileSize}
	}
	if doc.Size > p.MaxFileSize {
		return &ValidationError{Err: ErrFileTooLarge, MediaType: doc.MediaType, Size: doc.Size, Limit: p.MaxFileSize}
	}
	return nil
}

// Snapshot is a consistent view of a session at one point in time. Clauses
// are copies owned by the caller.
type Snapshot struct {
	Generation     uint64          `json:"generation"`
	State          model.State     `json:"state"`
	Progress       int             `json:"progress"`
	Document       *model.Document `json:"document,omitempty"`
	Clauses        []model.Clause  `json:"clauses"`
	SkippedRecords int             `json:"skipped_records"`
	Err            error           `json:"-"`
	ErrorCode      string          `json:"error_code,omitempty"`
	Message        string          `json:"message,omitempty"`
}

// Listener observes every state or progress change. Listeners run while the
// lifecycle is locked and must not call back into it.
type Listener func(Snapshot)

// Lifecycle drives one analysis session: at most one submission in flight,
// results applied only if no reset happened in between.
type Lifecycle struct {
	analyzer Analyzer
	policy   Policy

	mu         sync.Mutex
	generation uint64
	state      model.State
	progress   int
	doc        *model.Document
	clauses    []model.Clause
	skipped    int
	err        error
	cancel     context.CancelFunc
	listeners  []Listener
}

func NewLifecycle(analyzer Analyzer, policy Policy) *Lifecycle {
	return &Lifecycle{
		analyzer: analyzer,
		policy:   policy,
		state:    model.StateIdle,
	}
}

// Submission is a started upload. Done is closed once its outcome is known.
type Submission struct {
	generation uint64
	done       chan struct{}
	result     Snapshot
	err        error
}

func (s *Submission) Generation() uint64 {
	return s.generation
}

func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Result returns the snapshot taken when the submission finished and its
// error. It blocks until Done is closed. A submission discarded by a reset
// reports ErrStaleSubmission.
func (s *Submission) Result() (Snapshot, error) {
	<-s.done
	return s.result, s.err
}

// Subscribe registers fn for all later changes.
func (l *Lifecycle) Subscribe(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Start validates doc and, if accepted, uploads body in the background.
// Validation errors are returned directly and leave the session Failed.
// Starting from Succeeded or Failed replaces the previous outcome.
func (l *Lifecycle) Start(ctx context.Context, doc model.Document, body io.Reader) (*Submission, error) {
	l.mu.Lock()
	if l.state.InFlight() {
		l.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}

	l.generation++
	gen := l.generation
	d := doc
	l.doc = &d
	l.clauses = nil
	l.skipped = 0
	l.err = nil
	l.progress = 0
	l.setStateLocked(model.StateValidating)

	if err := l.policy.Validate(doc); err != nil {
		l.failLocked(err)
		l.mu.Unlock()
		logger.Warn(ctx, "Document rejected", "filename", doc.Filename, "size", doc.Size, "media_type", doc.MediaType, "code", Code(err))
		return nil, err
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if l.policy.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, l.policy.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	l.cancel = cancel
	l.setStateLocked(model.StateUploading)
	l.mu.Unlock()

	logger.Info(ctx, "Submission started", "filename", doc.Filename, "size", doc.Size, "generation", gen)

	sub := &Submission{generation: gen, done: make(chan struct{})}
	go l.run(runCtx, cancel, sub, doc, body)
	return sub, nil
}

// Submit starts a submission and waits for its outcome.
func (l *Lifecycle) Submit(ctx context.Context, doc model.Document, body io.Reader) (Snapshot, error) {
	sub, err := l.Start(ctx, doc, body)
	if err != nil {
		return l.Snapshot(), err
	}
	return sub.Result()
}

func (l *Lifecycle) run(ctx context.Context, cancel context.CancelFunc, sub *Submission, doc model.Document, body io.Reader) {
	defer close(sub.done)
	defer cancel()

	gen := sub.generation
	hooks := UploadHooks{
		Progress: func(percent int) { l.reportProgress(gen, percent) },
		Sent:     func() { l.markSent(gen) },
	}

	start := time.Now()
	raw, err := l.analyzer.Analyze(ctx, doc, body, hooks)
	var normalized Normalized
	if err == nil {
		normalized, err = Normalize(raw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.generation {
		sub.result = l.snapshotLocked()
		sub.err = ErrStaleSubmission
		logger.Info(ctx, "Discarding stale analysis result", "generation", gen, "current", l.generation)
		return
	}
	l.cancel = nil

	if err != nil {
		l.failLocked(err)
		logger.Error(ctx, "Analysis failed", "filename", doc.Filename, "code", Code(err), "error", err, "duration", time.Since(start))
	} else {
		if l.state == model.StateUploading {
			l.progress = 100
			l.setStateLocked(model.StateAnalyzing)
		}
		l.clauses = normalized.Clauses
		l.skipped = normalized.SkippedRecords
		l.setStateLocked(model.StateSucceeded)
		logger.Info(ctx, "Analysis completed", "filename", doc.Filename, "clauses", len(normalized.Clauses),
			"skipped", normalized.SkippedRecords, "duration", time.Since(start))
	}

	sub.result = l.snapshotLocked()
	sub.err = err
}

func (l *Lifecycle) reportProgress(gen uint64, percent int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation || l.state != model.StateUploading {
		return
	}
	percent = min(max(percent, 0), 100)
	if percent <= l.progress {
		return
	}
	l.progress = percent
	l.emitLocked()
}

func (l *Lifecycle) markSent(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.generation || l.state != model.StateUploading {
		return
	}
	l.progress = 100
	l.setStateLocked(model.StateAnalyzing)
}

// Reset returns the session to Idle. Any in-flight submission is cancelled
// and its eventual result discarded.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.generation++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.doc = nil
	l.clauses = nil
	l.skipped = 0
	l.err = nil
	l.progress = 0
	l.setStateLocked(model.StateIdle)
}

func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Lifecycle) State() model.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Clauses returns a copy of the current clause set.
func (l *Lifecycle) Clauses() []model.Clause {
	l.mu.Lock()
	defer l.mu.Unlock()
	return model.CloneClauses(l.clauses)
}

func (l *Lifecycle) failLocked(err error) {
	l.err = err
	l.clauses = nil
	l.skipped = 0
	l.setStateLocked(model.StateFailed)
}

func (l *Lifecycle) setStateLocked(state model.State) {
	l.state = state
	l.emitLocked()
}

func (l *Lifecycle) emitLocked() {
	if len(l.listeners) == 0 {
		return
	}
	snap := l.snapshotLocked()
	for _, fn := range l.listeners {
		fn(snap)
	}
}

func (l *Lifecycle) snapshotLocked() Snapshot {
	snap := Snapshot{
		Generation:     l.generation,
		State:          l.state,
		Progress:       l.progress,
		Clauses:        model.CloneClauses(l.clauses),
		SkippedRecords: l.skipped,
		Err:            l.err,
	}
	if l.doc != nil {
		d := *l.doc
		snap.Document = &d
	}
	if l.err != nil {
		snap.ErrorCode = Code(l.err)
		snap.Message = UserMessage(l.err)
	}
	return snap
}
