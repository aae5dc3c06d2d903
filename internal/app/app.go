package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"talkpaste/internal/asr"
	"talkpaste/internal/audio"
	"talkpaste/internal/audio/ffmpeg"
	"talkpaste/internal/clipboard"
	"talkpaste/internal/config"
	"talkpaste/internal/hotkey"
	"talkpaste/internal/hotkey/listener"
	"talkpaste/internal/logging"
	"talkpaste/internal/notify"
	"talkpaste/internal/pipeline"
	"talkpaste/internal/queue"
	"talkpaste/internal/record"
	"talkpaste/internal/status"
)

// RecorderOptions maps config keys onto recorder options.
func RecorderOptions(cfg config.Config) record.Options {
	return record.Options{
		DeviceID:           cfg.DeviceID,
		SampleRate:         cfg.SampleRate,
		MaxDuration:        cfg.MaxDuration(),
		MinDuration:        cfg.MinDuration(),
		SilenceThresholdDB: cfg.SilenceThresholdDB,
	}
}

// loadVocabulary reads the vocabulary file, if any. With watch set it is
// reloaded on change until ctx is done.
func loadVocabulary(ctx context.Context, path string, watch bool, log zerolog.Logger) *asr.Vocabulary {
	vocab := &asr.Vocabulary{}
	if path == "" {
		return vocab
	}
	if err := vocab.Load(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("vocabulary not loaded")
	} else {
		log.Info().Int("terms", len(vocab.Terms())).Str("path", path).Msg("vocabulary loaded")
	}
	if watch {
		if err := vocab.Watch(ctx, path, log, nil); err != nil {
			log.Warn().Err(err).Msg("vocabulary hot reload disabled")
		}
	}
	return vocab
}

// RunListenMode runs the push-to-talk loop until ctx is cancelled.
func RunListenMode(ctx context.Context, store *config.Store, log zerolog.Logger) error {
	cfg := store.Snapshot()
	config.InitCacheDir(&cfg, logging.Component(log, "cache"))
	pipeline.CleanupTemp(config.TempDir(&cfg), logging.Component(log, "cleanup"))

	chord, err := hotkey.ParseChord(cfg.Hotkey)
	if err != nil {
		return err
	}
	tr, err := asr.New(cfg, asr.NewHTTPClient(cfg))
	if err != nil {
		return err
	}
	sink, err := clipboard.NewSystemSink(cfg.RestoreClipboard, logging.Component(log, "paste"))
	if err != nil {
		return err
	}
	vocab := loadVocabulary(ctx, cfg.VocabularyPath, true, logging.Component(log, "vocabulary"))

	jobs := queue.New[queue.Job](cfg.QueueSize)
	src := audio.NewPortAudio(cfg.FramesPerBuffer, logging.Component(log, "audio"))
	rec := record.New(src, RecorderOptions(cfg), logging.Component(log, "record"))

	notifiers := notify.Multi{notify.NewDesktop(cfg.Sound, cfg.Notification, logging.Component(log, "notify"))}
	var machine *hotkey.Machine
	var hub *status.Hub
	if cfg.StatusAddr != "" {
		hub = status.NewHub(status.Options{
			Hotkey:   chord.String(),
			Provider: cfg.Provider,
			State:    func() string { return machine.State().String() },
			QueueLen: jobs.Len,
		}, logging.Component(log, "status"))
		notifiers = append(notifiers, hub)
	}
	machine = hotkey.NewMachine(chord, rec, jobs, notifiers, logging.Component(log, "hotkey"))

	events, err := listener.Listen(ctx, chord, logging.Component(log, "hotkey"))
	if err != nil {
		return fmt.Errorf("hotkey listener: %w", err)
	}

	pool := pipeline.New(jobs, tr, sink, notifiers,
		pipeline.OptionsFromConfig(cfg, vocab, logging.Component(log, "cache")),
		logging.Component(log, "pipeline"))
	poolDone := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(poolDone)
	}()

	if hub != nil {
		go func() {
			if err := hub.Serve(ctx, cfg.StatusAddr); err != nil {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	log.Info().
		Str("hotkey", chord.String()).
		Str("provider", cfg.Provider).
		Int("workers", cfg.Workers).
		Msg("ready, hold the hotkey to dictate")

	err = machine.Run(ctx, events)

	for _, j := range jobs.Close() {
		log.Warn().Str("session", j.SessionID).Dur("audio", audio.SamplesDuration(len(j.Samples), j.SampleRate)).
			Msg("dropping untranscribed session at shutdown")
	}
	<-poolDone
	log.Info().Msg("stopped")
	return err
}

// RunFileMode transcribes an existing audio file and writes the text next
// to it (or to outputPath).
func RunFileMode(ctx context.Context, cfg config.Config, inputPath, outputPath string, log zerolog.Logger) (string, error) {
	config.InitCacheDir(&cfg, logging.Component(log, "cache"))
	tempDir := config.TempDir(&cfg)
	pipeline.CleanupTemp(tempDir, logging.Component(log, "cleanup"))

	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("file '%s' stat failed: %w", inputPath, err)
	}
	tr, err := asr.New(cfg, asr.NewHTTPClient(cfg))
	if err != nil {
		return "", err
	}

	samples, rate, err := decodeInput(ctx, inputPath, tempDir, logging.Component(log, "ffmpeg"))
	if err != nil {
		return "", err
	}
	log.Info().Str("file", inputPath).Dur("duration", audio.SamplesDuration(len(samples), rate)).Msg("transcribing file")

	vocab := loadVocabulary(ctx, cfg.VocabularyPath, false, logging.Component(log, "vocabulary"))
	pool := pipeline.New(nil, tr, nil, nil, pipeline.OptionsFromConfig(cfg, vocab, logging.Component(log, "cache")),
		logging.Component(log, "pipeline"))
	text, err := pool.Transcribe(ctx, queue.Job{SessionID: filepath.Base(inputPath), Samples: samples, SampleRate: rate})
	if err != nil {
		return "", err
	}

	outPath := outputPath
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outPath = filepath.Join(".", base+".txt")
	}
	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		return "", err
	}
	log.Info().Str("output", outPath).Int("chars", len(text)).Msg("transcript written")
	return outPath, nil
}

// decodeInput returns mono 16-bit samples for any input ffmpeg can read.
// Without ffmpeg only WAV input is accepted.
func decodeInput(ctx context.Context, inputPath, tempDir string, log zerolog.Logger) ([]int16, int, error) {
	if err := ffmpeg.Available(); err != nil {
		if !strings.EqualFold(filepath.Ext(inputPath), ".wav") {
			return nil, 0, err
		}
		log.Debug().Msg("ffmpeg unavailable, reading wav directly")
		return audio.ReadWAVFile(inputPath)
	}
	tmp := pipeline.TempPath(tempDir, "wav")
	defer os.Remove(tmp)
	if err := ffmpeg.ToWAV(ctx, inputPath, tmp, 0, log); err != nil {
		return nil, 0, err
	}
	return audio.ReadWAVFile(tmp)
}
