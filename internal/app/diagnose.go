package app

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"

	"talkpaste/internal/audio"
	"talkpaste/internal/config"
	"talkpaste/internal/logging"
	"talkpaste/internal/record"
)

// DiagnoseReport describes a test recording.
type DiagnoseReport struct {
	Path       string
	DeviceID   int
	SampleRate int
	SafetyStop bool
	Info       audio.WAVInfo
	Level      audio.LevelReport
}

// Diagnose records for d through the recorder alone (no hotkey, queue or
// upload) and writes the result to outPath.
func Diagnose(ctx context.Context, src audio.Source, cfg config.Config, d time.Duration, outPath string, log zerolog.Logger) (DiagnoseReport, error) {
	opts := RecorderOptions(cfg)
	opts.MaxDuration = d
	opts.ForceKeep = true
	rec := record.New(src, opts, log)

	if _, err := rec.Start(ctx); err != nil {
		return DiagnoseReport{}, err
	}
	log.Info().Dur("length", d).Msg("recording test clip, speak now")
	select {
	case in := <-rec.Interrupts():
		if in.Reason != record.StopMaxDuration {
			log.Warn().Stringer("reason", in.Reason).Msg("test recording ended early")
		}
	case <-ctx.Done():
		rec.Abort()
		return DiagnoseReport{}, ctx.Err()
	}
	sess, err := rec.Stop()
	if err != nil {
		return DiagnoseReport{}, err
	}

	samples := sess.Samples()
	if err := audio.WriteWAVFile(outPath, samples, sess.SampleRate); err != nil {
		return DiagnoseReport{}, err
	}
	info, err := audio.Inspect(outPath)
	if err != nil {
		return DiagnoseReport{}, fmt.Errorf("read back %s: %w", outPath, err)
	}
	return DiagnoseReport{
		Path:       outPath,
		DeviceID:   cfg.DeviceID,
		SampleRate: sess.SampleRate,
		SafetyStop: sess.SafetyStop,
		Info:       info,
		Level:      audio.Analyze(samples),
	}, nil
}

// RunDiagnose records a test clip from the configured device and prints a
// report to out.
func RunDiagnose(ctx context.Context, cfg config.Config, seconds float64, outPath string, out io.Writer, log zerolog.Logger) error {
	src := audio.NewPortAudio(cfg.FramesPerBuffer, logging.Component(log, "audio"))
	d := time.Duration(seconds * float64(time.Second))
	rep, err := Diagnose(ctx, src, cfg, d, outPath, logging.Component(log, "diagnose"))
	if err != nil {
		return err
	}
	PrintReport(out, rep)
	return nil
}

func fmtDB(v float64) string {
	if math.IsInf(v, -1) {
		return "-inf dBFS"
	}
	return fmt.Sprintf("%.1f dBFS", v)
}

// PrintReport writes a human readable diagnose report.
func PrintReport(out io.Writer, rep DiagnoseReport) {
	device := "default"
	if rep.DeviceID >= 0 {
		device = fmt.Sprintf("#%d", rep.DeviceID)
	}
	fmt.Fprintf(out, "File:        %s\n", rep.Path)
	fmt.Fprintf(out, "Device:      %s\n", device)
	fmt.Fprintf(out, "Format:      %d ch, %d Hz, %d bit (format %d)\n",
		rep.Info.Channels, rep.Info.SampleRate, rep.Info.BitsPerSample, rep.Info.Format)
	fmt.Fprintf(out, "Duration:    %.2fs (%d samples)\n", rep.Info.Duration.Seconds(), rep.Info.Samples)
	fmt.Fprintf(out, "Peak:        %s\n", fmtDB(rep.Level.PeakDB))
	fmt.Fprintf(out, "RMS:         %s\n", fmtDB(rep.Level.RMSDB))
	fmt.Fprintf(out, "Clipped:     %d samples\n", rep.Level.Clipped)
	fmt.Fprintf(out, "Quality:     %s\n", rep.Level.Quality)
	switch rep.Level.Quality {
	case audio.QualitySilent:
		fmt.Fprintln(out, "No signal. Check the device index and microphone permissions.")
	case audio.QualityPoor, audio.QualityFair:
		fmt.Fprintln(out, "Signal is quiet. Move closer or raise BOOST_DB.")
	case audio.QualityClipped:
		fmt.Fprintln(out, "Signal clips. Lower the input gain or BOOST_DB.")
	}
}
