package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"golang.design/x/hotkey/mainthread"

	"talkpaste/internal/app"
	"talkpaste/internal/asr"
	"talkpaste/internal/config"
	"talkpaste/internal/logging"
)

const defaultConfigPath = "config.json"

// exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitConvert  = 2
	exitUpload   = 3
	exitDiagnose = 4
)

func usage() {
	programName := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, `Usage: %s [options]

Hold the hotkey to record, release it to transcribe. The text is pasted
into the focused window.

Modes:
  -config <path>         config file (JSON). Defaults to ./config.json; when it is
                         missing and no flags are given a default one is written.
  -file <path>           transcribe an existing audio file to a .txt file
  -output <path>         output path for -file mode
  -list-devices          list audio input devices and exit
  -diagnose <seconds>    record a test clip and report its levels
  -diagnose-output <p>   where -diagnose writes its clip (default diagnose.wav)
  -save-device           persist -device to the config file
  -save-hotkey           persist -hotkey to the config file

All config keys can also be given as flags:
`, programName)
	flag.PrintDefaults()
}

func main() {
	code := exitOK
	mainthread.Init(func() { code = run() })
	os.Exit(code)
}

func run() int {
	fs := flag.CommandLine
	fs.Usage = usage
	configPath := fs.String("config", "", "path to config JSON")
	filePath := fs.String("file", "", "existing audio file to transcribe")
	listDevices := fs.Bool("list-devices", false, "list input devices and exit")
	diagnose := fs.Float64("diagnose", 0, "record a test clip of N seconds")
	diagnoseOut := fs.String("diagnose-output", "diagnose.wav", "test clip path")
	saveDevice := fs.Bool("save-device", false, "persist -device to the config file")
	saveHotkey := fs.Bool("save-hotkey", false, "persist -hotkey to the config file")
	fv := config.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	path := *configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		} else if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "failed to stat %s: %v\n", defaultConfigPath, err)
			return exitFailure
		} else if !fv.AnySet() && *filePath == "" && !*listDevices && *diagnose == 0 {
			if err := config.SaveDefault(defaultConfigPath); err != nil {
				fmt.Fprintf(os.Stderr, "failed to write default config: %v\n", err)
				return exitFailure
			}
			fmt.Printf("default config created at %s. Please edit it and re-run.\n", defaultConfigPath)
			return exitOK
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config '%s': %v\n", path, err)
		return exitFailure
	}
	config.ApplyFlags(&cfg, fv)

	log, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, NoColor: cfg.LogNoColor})
	defer closer.Close()
	mainLog := logging.Component(log, "main")

	if *listDevices {
		if err := app.ListDevices(os.Stdout); err != nil {
			mainLog.Error().Err(err).Msg("list devices failed")
			return exitFailure
		}
		return exitOK
	}

	if err := config.Validate(&cfg); err != nil {
		mainLog.Error().Err(err).Msg("invalid config")
		return exitFailure
	}

	if *saveDevice || *saveHotkey {
		if err := persist(path, cfg, *saveDevice, *saveHotkey, fv); err != nil {
			mainLog.Error().Err(err).Msg("config write-back failed")
			return exitFailure
		}
		mainLog.Info().Int("device", cfg.DeviceID).Str("hotkey", cfg.Hotkey).Msg("config saved")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *filePath != "":
		return runFile(ctx, cfg, *filePath, fv.OutputPath, log)
	case *diagnose > 0:
		if err := app.RunDiagnose(ctx, cfg, *diagnose, *diagnoseOut, os.Stdout, log); err != nil {
			mainLog.Error().Err(err).Msg("diagnose failed")
			return exitDiagnose
		}
		return exitOK
	}

	if err := app.RunListenMode(ctx, config.NewStore(cfg, path), log); err != nil {
		mainLog.Error().Err(err).Msg("listen mode failed")
		return exitFailure
	}
	return exitOK
}

func runFile(ctx context.Context, cfg config.Config, in, out string, log zerolog.Logger) int {
	mainLog := logging.Component(log, "main")
	if _, err := app.RunFileMode(ctx, cfg, in, out, log); err != nil {
		var se *asr.ServiceError
		if errors.As(err, &se) {
			mainLog.Error().Err(err).Msg("upload failed")
			return exitUpload
		}
		mainLog.Error().Err(err).Msg("file mode failed")
		return exitConvert
	}
	return exitOK
}

// persist writes the requested keys back to the config file, starting from
// the file's own contents.
func persist(path string, cfg config.Config, device, hotkey bool, fv *config.FlagValues) error {
	if device && !fv.DeviceIDSet {
		return fmt.Errorf("-save-device needs -device")
	}
	if hotkey && !fv.HotkeySet {
		return fmt.Errorf("-save-hotkey needs -hotkey")
	}
	if path == "" {
		path = defaultConfigPath
	}
	fileCfg, err := config.LoadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	store := config.NewStore(fileCfg, path)
	if err := store.Update(func(c *config.Config) {
		if device {
			c.DeviceID = cfg.DeviceID
		}
		if hotkey {
			c.Hotkey = cfg.Hotkey
		}
	}); err != nil {
		return err
	}
	return store.Save()
}
