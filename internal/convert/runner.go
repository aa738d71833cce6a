package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lecternaudio/lectern/internal/audio"
	"github.com/lecternaudio/lectern/internal/book"
	"github.com/lecternaudio/lectern/internal/chunk"
	"github.com/lecternaudio/lectern/internal/home"
	"github.com/lecternaudio/lectern/internal/manifest"
	"github.com/lecternaudio/lectern/internal/synth"
)

const (
	// DefaultWorkers is how many chapters synthesize concurrently. The
	// engine is heavyweight per invocation, so the pool stays small.
	DefaultWorkers = 2

	// MaxWorkers caps the pool regardless of configuration.
	MaxWorkers = 4

	// DefaultChunkTimeout bounds one chunk synthesis call.
	DefaultChunkTimeout = 300 * time.Second
)

// Options configure a conversion run.
type Options struct {
	Workers      int           // concurrent chapters, clamped to [1, MaxWorkers]
	MaxChars     int           // chunk character budget, zero selects the planner default
	ChunkTimeout time.Duration // hard per-chunk synthesis timeout
	Silence      float64       // seconds of silence between chunks of a chapter
	Voice        string
	Params       synth.Params
}

func (o Options) workers() int {
	w := o.Workers
	if w <= 0 {
		w = DefaultWorkers
	}
	if w > MaxWorkers {
		w = MaxWorkers
	}
	return w
}

func (o Options) chunkTimeout() time.Duration {
	if o.ChunkTimeout <= 0 {
		return DefaultChunkTimeout
	}
	return o.ChunkTimeout
}

// Runner converts one book per Run call. Chapters run on a bounded worker
// pool; chunks within a chapter run sequentially. A chapter failure never
// stops its siblings, and cancellation is cooperative: chapters already
// dispatched finish, nothing new starts.
type Runner struct {
	home   *home.Dir
	store  *manifest.Store
	engine synth.Synthesizer
	opts   Options
	sink   Sink
	logger *slog.Logger

	mu        sync.Mutex
	job       *Job
	cancelled atomic.Bool
}

// NewRunner wires a runner. sink may be nil when nobody watches progress.
func NewRunner(h *home.Dir, store *manifest.Store, engine synth.Synthesizer, opts Options, sink Sink, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		home:   h,
		store:  store,
		engine: engine,
		opts:   opts,
		sink:   sink,
		logger: logger,
	}
}

// Cancel requests cooperative cancellation. No new chapter is dispatched
// after the call; in-flight chapters run to completion or timeout.
func (r *Runner) Cancel() {
	r.cancelled.Store(true)
}

// Job returns a snapshot of the current job state.
func (r *Runner) Job() Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job == nil {
		return Job{}
	}
	return *r.job
}

// chapterResult is one chapter's outcome, funneled back to the driver.
type chapterResult struct {
	index   int
	err     error
	skipped bool // left pending because the job was cancelled first
}

// Run converts every pending chapter of the book and, once all chapters are
// terminal, packages the archive. Chapters completed by earlier runs are
// kept; chapters stuck in processing from an interrupted run are reclaimed
// to pending and redone. Returns the final job state; err is non-nil only
// for book-level failures, a job that ends failed or cancelled is still a
// valid outcome.
func (r *Runner) Run(ctx context.Context, bookID string) (*Job, error) {
	m, err := r.store.Load(bookID)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:            uuid.NewString(),
		BookID:        bookID,
		Status:        book.JobPending,
		TotalChapters: m.Book.TotalChapters,
	}
	r.mu.Lock()
	r.job = job
	r.mu.Unlock()

	// Reclaim chapters an interrupted run left in processing. The attempt
	// never finished, so it does not advance the attempt counter.
	for _, ch := range m.Chapters {
		if ch.Status == book.ChapterProcessing {
			if err := r.store.ReclaimChapter(bookID, ch.Index); err != nil {
				return nil, err
			}
		}
	}
	m, err = r.store.Load(bookID)
	if err != nil {
		return nil, err
	}

	var pending []book.Chapter
	for _, ch := range m.Chapters {
		if ch.Status == book.ChapterPending {
			pending = append(pending, ch)
		}
	}

	r.setState(func(j *Job) {
		j.Status = book.JobProcessing
		j.StartedAt = time.Now().UTC()
		j.ChaptersCompleted = m.CompletedCount()
	})

	r.logger.Info("conversion started",
		"job_id", job.ID,
		"book_id", bookID,
		"chapters", len(pending),
		"already_completed", m.CompletedCount(),
		"workers", r.opts.workers(),
	)

	r.runPool(ctx, m.Book, pending)

	return r.finalize(ctx, bookID)
}

// runPool dispatches pending chapters onto the worker pool and folds results
// into the job as they arrive.
func (r *Runner) runPool(ctx context.Context, b book.Book, pending []book.Chapter) {
	if len(pending) == 0 {
		return
	}

	workers := r.opts.workers()
	if workers > len(pending) {
		workers = len(pending)
	}

	work := make(chan book.Chapter)
	results := make(chan chapterResult)

	go func() {
		defer close(work)
		for _, ch := range pending {
			if r.stopped(ctx) {
				return
			}
			select {
			case work <- ch:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ch := range work {
				// Cancellation check between chapters. A skipped
				// chapter stays pending for a future run.
				if r.stopped(ctx) {
					results <- chapterResult{index: ch.Index, skipped: true}
					continue
				}
				err := r.runChapter(ctx, b, ch)
				results <- chapterResult{index: ch.Index, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.skipped {
			continue
		}
		idx := res.index
		r.setState(func(j *Job) {
			j.CurrentChapter = &idx
			if res.err == nil {
				j.ChaptersCompleted++
			}
		})
		r.publish()
	}
}

// runChapter synthesizes one chapter end to end: plan chunks, synthesize
// them in order under the per-chunk timeout, assemble the chapter WAV, and
// record the outcome in the manifest. Any failure fails only this chapter.
func (r *Runner) runChapter(ctx context.Context, b book.Book, ch book.Chapter) error {
	log := r.logger.With("book_id", b.ID, "chapter", ch.Index, "title", ch.Title)

	if err := r.store.BeginChapter(b.ID, ch.Index); err != nil {
		return err
	}

	fail := func(cause error) error {
		log.Warn("chapter failed", "error", cause)
		if err := r.store.FailChapter(b.ID, ch.Index, cause); err != nil {
			log.Error("failed to record chapter failure", "error", err)
		}
		return cause
	}

	data, err := os.ReadFile(filepath.Join(r.home.BookDir(b.ID), filepath.FromSlash(ch.TextRef)))
	if err != nil {
		return fail(fmt.Errorf("read chapter text: %w", err))
	}

	chunks := chunk.Plan(string(data), r.opts.MaxChars)
	if len(chunks) == 0 {
		return fail(fmt.Errorf("chapter has no synthesizable text"))
	}

	if err := r.home.EnsureAudioDir(b.ID); err != nil {
		return fail(err)
	}
	if err := r.home.EnsureChapterChunkDir(b.ID, ch.Index); err != nil {
		return fail(err)
	}

	log.Info("synthesizing chapter", "chunks", len(chunks), "words", ch.WordCount)

	payloads := make([][]byte, len(chunks))
	for i, c := range chunks {
		res, err := r.synthesizeChunk(ctx, c.Text)
		if err != nil {
			return fail(fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err))
		}
		// Keep the segment on disk so a failed assembly is inspectable.
		if err := os.WriteFile(r.home.ChunkAudioPath(b.ID, ch.Index, i), res.Audio, 0o644); err != nil {
			return fail(fmt.Errorf("persist chunk %d audio: %w", i, err))
		}
		payloads[i] = res.Audio
	}

	assembler := audio.NewAssembler(r.opts.Silence, log)
	clip, err := assembler.AssembleFile(r.home.ChapterAudioPath(b.ID, ch.Filename), payloads)
	if err != nil {
		return fail(err)
	}

	if err := r.store.CompleteChapter(b.ID, ch.Index, ch.Filename); err != nil {
		return fail(err)
	}

	// Segments served their purpose once the chapter WAV exists.
	if err := os.RemoveAll(r.home.ChapterChunkDir(b.ID, ch.Index)); err != nil {
		log.Warn("failed to remove chunk segments", "error", err)
	}

	log.Info("chapter completed", "duration", clip.Duration().Round(time.Second))
	return nil
}

// synthesizeChunk runs one engine call under the hard timeout. A deadline
// expiry surfaces as a timeout-classified synthesis error.
func (r *Runner) synthesizeChunk(ctx context.Context, text string) (*synth.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, r.opts.chunkTimeout())
	defer cancel()

	res, err := r.engine.Synthesize(cctx, synth.Request{
		Text:   text,
		Voice:  r.opts.Voice,
		Params: r.opts.Params,
	})
	if err != nil {
		if cctx.Err() == context.DeadlineExceeded && !synth.IsTimeout(err) {
			err = &synth.Error{Engine: r.engine.Name(), Err: synth.ErrTimeout}
		}
		return nil, err
	}
	return res, nil
}

// finalize settles the job's terminal state and, when every chapter is
// terminal with at least one completed, writes the archive.
func (r *Runner) finalize(ctx context.Context, bookID string) (*Job, error) {
	m, err := r.store.Load(bookID)
	if err != nil {
		return nil, err
	}

	completed := m.CompletedCount()

	switch {
	case r.stopped(ctx):
		r.setState(func(j *Job) {
			j.Status = book.JobCancelled
			j.CompletedAt = time.Now().UTC()
		})
	case completed == 0:
		r.setState(func(j *Job) {
			j.Status = book.JobFailed
			j.Error = "no chapters produced audio"
			j.CompletedAt = time.Now().UTC()
		})
	default:
		archivePath, err := r.writeArchive(m)
		r.setState(func(j *Job) {
			if err != nil {
				j.Status = book.JobFailed
				j.Error = fmt.Sprintf("archive: %v", err)
			} else {
				j.Status = book.JobCompleted
				j.OutputArchive = archivePath
			}
			j.CompletedAt = time.Now().UTC()
		})
	}

	r.publish()

	job := r.Job()
	r.logger.Info("conversion finished",
		"job_id", job.ID,
		"book_id", bookID,
		"status", job.Status,
		"chapters_completed", job.ChaptersCompleted,
		"total_chapters", job.TotalChapters,
	)
	return &job, nil
}

// writeArchive packages completed chapter audio, the manifest, and the
// generated README into the book's archive.
func (r *Runner) writeArchive(m *manifest.Manifest) (string, error) {
	manifestBytes, err := os.ReadFile(r.home.ManifestPath(m.Book.ID))
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}

	info := audio.ArchiveInfo{
		Title:    m.Book.Title,
		Author:   m.Book.Author,
		Engine:   r.engine.Name(),
		Voice:    r.opts.Voice,
		Manifest: manifestBytes,
	}
	for _, ch := range m.Chapters {
		entry := audio.ArchiveChapter{
			Index:     ch.Index,
			Title:     ch.Title,
			Duration:  time.Duration(ch.EstimatedDurationSecs * float64(time.Second)),
			Completed: ch.Status == book.ChapterCompleted,
		}
		if entry.Completed {
			entry.AudioPath = filepath.Join(r.home.BookDir(m.Book.ID), filepath.FromSlash(ch.AudioFile))
		}
		info.Chapters = append(info.Chapters, entry)
	}

	path := r.home.ArchivePath(m.Book.ID)
	if err := audio.WriteArchive(path, info); err != nil {
		return "", err
	}
	return path, nil
}

// stopped reports whether the run should dispatch no further chapters.
func (r *Runner) stopped(ctx context.Context) bool {
	return r.cancelled.Load() || ctx.Err() != nil
}

func (r *Runner) setState(fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.job)
}

// publish emits the current job state to the sink, if any.
func (r *Runner) publish() {
	if r.sink == nil {
		return
	}
	r.mu.Lock()
	j := *r.job
	r.mu.Unlock()

	var current *int
	if j.CurrentChapter != nil {
		c := *j.CurrentChapter
		current = &c
	}
	r.sink.Publish(Event{
		JobID:             j.ID,
		Status:            j.Status,
		CurrentChapter:    current,
		ChaptersCompleted: j.ChaptersCompleted,
		TotalChapters:     j.TotalChapters,
	})
}
