// Package pipeline turns queued recordings into pasted text.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"talkpaste/internal/asr"
	"talkpaste/internal/audio"
	"talkpaste/internal/config"
	"talkpaste/internal/notify"
	"talkpaste/internal/queue"
)

// Dequeuer hands out jobs; it returns an error once no more will come.
type Dequeuer interface {
	Dequeue(ctx context.Context) (queue.Job, error)
}

// Sink receives transcripts.
type Sink interface {
	Deliver(text string) error
}

// Options tunes the workers.
type Options struct {
	Workers          int
	UploadSampleRate int
	BoostDB          float64
	Normalize        bool
	Timeout          time.Duration
	Prompt           string
	Language         string
	Model            string
	TempDir          string
	Vocabulary       *asr.Vocabulary
	Cache            *Cache
}

// OptionsFromConfig maps config keys onto worker options.
func OptionsFromConfig(cfg config.Config, vocab *asr.Vocabulary, log zerolog.Logger) Options {
	return Options{
		Workers:          cfg.Workers,
		UploadSampleRate: cfg.UploadSampleRate,
		BoostDB:          cfg.BoostDB,
		Normalize:        cfg.Normalize,
		Timeout:          cfg.Timeout(),
		Prompt:           cfg.Prompt,
		Language:         cfg.Language,
		Model:            cfg.Model,
		TempDir:          config.TempDir(&cfg),
		Vocabulary:       vocab,
		Cache:            &Cache{Dir: cfg.CacheDir, Keep: cfg.KeepCache, Log: log},
	}
}

// Pool runs transcription workers over a job queue. Each job is attempted
// exactly once.
type Pool struct {
	opts     Options
	jobs     Dequeuer
	tr       asr.Transcriber
	sink     Sink
	notifier notify.Notifier
	log      zerolog.Logger
}

// New builds a pool. A nil notifier drops events.
func New(jobs Dequeuer, tr asr.Transcriber, sink Sink, n notify.Notifier, opts Options, log zerolog.Logger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Cache == nil {
		opts.Cache = &Cache{Log: log}
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Pool{opts: opts, jobs: jobs, tr: tr, sink: sink, notifier: n, log: log}
}

// Run starts the workers and blocks until all of them have returned, which
// happens when the queue is closed or ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	return nil
}

func (p *Pool) worker(ctx context.Context, id int) {
	log := p.log.With().Int("worker", id).Logger()
	log.Debug().Msg("worker started")
	for {
		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("dequeue failed")
			}
			log.Debug().Msg("worker stopped")
			return
		}
		p.process(ctx, job, log)
	}
}

func (p *Pool) process(ctx context.Context, job queue.Job, log zerolog.Logger) {
	log = log.With().Str("session", job.SessionID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("job panicked")
			ev := notify.New(notify.Error, job.SessionID)
			ev.Err = fmt.Errorf("internal error: %v", r)
			p.notifier.Notify(ev)
		}
	}()

	log.Debug().Dur("waited", time.Since(job.EnqueuedAt)).Msg("job picked up")
	text, err := p.transcribe(ctx, job, log)
	if err != nil {
		p.fail(job.SessionID, err, log)
		return
	}
	if strings.TrimSpace(text) == "" {
		log.Info().Msg("empty transcript, nothing to paste")
		return
	}
	if err := p.sink.Deliver(text); err != nil {
		p.fail(job.SessionID, err, log)
		return
	}
	log.Info().Int("chars", len(text)).Msg("pasted")
	ev := notify.New(notify.Pasted, job.SessionID)
	ev.Text = text
	p.notifier.Notify(ev)
}

func (p *Pool) fail(sessionID string, err error, log zerolog.Logger) {
	var se *asr.ServiceError
	if errors.As(err, &se) {
		log.Error().Err(err).Str("kind", string(se.Kind)).Int("status", se.StatusCode).Msg("transcription failed")
	} else {
		log.Error().Err(err).Msg("job failed")
	}
	ev := notify.New(notify.Error, sessionID)
	ev.Err = err
	p.notifier.Notify(ev)
}

// Transcribe runs a single job through preprocessing and the provider
// without pasting the result.
func (p *Pool) Transcribe(ctx context.Context, job queue.Job) (string, error) {
	return p.transcribe(ctx, job, p.log.With().Str("session", job.SessionID).Logger())
}

func (p *Pool) transcribe(ctx context.Context, job queue.Job, log zerolog.Logger) (string, error) {
	samples, rate := Prepare(job.Samples, job.SampleRate, p.opts)
	report := audio.Analyze(samples)
	log.Debug().
		Float64("peak_db", report.PeakDB).
		Float64("rms_db", report.RMSDB).
		Str("quality", string(report.Quality)).
		Int("rate", rate).
		Msg("audio prepared")

	path := TempPath(p.opts.TempDir, "wav")
	if err := audio.WriteWAVFile(path, samples, rate); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()
	start := time.Now()
	res, err := p.tr.Transcribe(reqCtx, asr.Request{
		AudioPath: path,
		Prompt:    asr.BuildPrompt(p.opts.Prompt, p.opts.Vocabulary),
		Language:  p.opts.Language,
		Model:     p.opts.Model,
	})
	p.opts.Cache.Finish(path, err == nil, res.Raw)
	if err != nil {
		return "", err
	}
	log.Debug().Dur("took", time.Since(start)).Msg("transcribed")
	return res.Text, nil
}

// Prepare applies gain, optional loudness normalisation and resampling.
// It returns the samples to upload and their rate.
func Prepare(samples []int16, rate int, opts Options) ([]int16, int) {
	out := audio.ApplyGain(samples, opts.BoostDB)
	if opts.Normalize {
		out = audio.NormalizeRMS(out)
	}
	if opts.UploadSampleRate > 0 && opts.UploadSampleRate != rate {
		out = audio.Resample(out, rate, opts.UploadSampleRate)
		rate = opts.UploadSampleRate
	}
	return out, rate
}
