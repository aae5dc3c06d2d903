package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// FlagValues holds parsed flags with explicit set tracking.
type FlagValues struct {
	Provider          string
	ProviderSet       bool
	APIEndpoint       string
	APIEndpointSet    bool
	Token             string
	TokenSet          bool
	Model             string
	ModelSet          bool
	Language          string
	LanguageSet       bool
	Prompt            string
	PromptSet         bool
	TEXTPath          string
	TEXTPathSet       bool
	ExtraConfig       string
	ExtraConfigSet    bool
	VocabularyPath    string
	VocabularyPathSet bool

	DeviceID            int
	DeviceIDSet         bool
	Hotkey              string
	HotkeySet           bool
	SampleRate          int
	SampleRateSet       bool
	UploadSampleRate    int
	UploadSampleRateSet bool
	MaxRecording        float64
	MaxRecordingSet     bool
	MinRecording        float64
	MinRecordingSet     bool
	BoostDB             float64
	BoostDBSet          bool
	Normalize           bool
	NormalizeSet        bool

	Workers           int
	WorkersSet        bool
	QueueSize         int
	QueueSizeSet      bool
	RequestTimeout    int
	RequestTimeoutSet bool
	EnableHTTP2       bool
	EnableHTTP2Set    bool
	VerifySSL         bool
	VerifySSLSet      bool

	CacheDir        string
	CacheDirSet     bool
	KeepCache       bool
	KeepCacheSet    bool
	Notification    bool
	NotificationSet bool
	Sound           bool
	SoundSet        bool
	StatusAddr      string
	StatusAddrSet   bool
	LogLevel        string
	LogLevelSet     bool
	LogFile         string
	LogFileSet      bool

	OutputPath    string
	OutputPathSet bool
}

type stringFlag struct {
	target *string
	set    *bool
}

func (s *stringFlag) String() string {
	if s == nil || s.target == nil {
		return ""
	}
	return *s.target
}

func (s *stringFlag) Set(v string) error {
	if s.target != nil {
		*s.target = v
	}
	if s.set != nil {
		*s.set = true
	}
	return nil
}

type intFlag struct {
	target *int
	set    *bool
}

func (i *intFlag) String() string {
	if i == nil || i.target == nil {
		return ""
	}
	return fmt.Sprintf("%d", *i.target)
}

func (i *intFlag) Set(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if i.target != nil {
		*i.target = n
	}
	if i.set != nil {
		*i.set = true
	}
	return nil
}

type floatFlag struct {
	target *float64
	set    *bool
}

func (f *floatFlag) String() string {
	if f == nil || f.target == nil {
		return ""
	}
	return fmt.Sprintf("%v", *f.target)
}

func (f *floatFlag) Set(v string) error {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	if f.target != nil {
		*f.target = n
	}
	if f.set != nil {
		*f.set = true
	}
	return nil
}

type boolFlag struct {
	target *bool
	set    *bool
}

func (b *boolFlag) String() string {
	if b == nil || b.target == nil {
		return ""
	}
	return fmt.Sprintf("%v", *b.target)
}

func parseBoolExt(v string) (bool, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean: %s", v)
}

func (b *boolFlag) Set(v string) error {
	n, err := parseBoolExt(v)
	if err != nil {
		return err
	}
	if b.target != nil {
		*b.target = n
	}
	if b.set != nil {
		*b.set = true
	}
	return nil
}

// BindFlags registers all flags and returns the populated FlagValues.
func BindFlags(fs *flag.FlagSet) *FlagValues {
	fv := &FlagValues{}

	fs.Var(&stringFlag{&fv.Provider, &fv.ProviderSet}, "provider", "transcription provider (openai, http)")
	fs.Var(&stringFlag{&fv.APIEndpoint, &fv.APIEndpointSet}, "api-endpoint", "API endpoint URL")
	fs.Var(&stringFlag{&fv.Token, &fv.TokenSet}, "token", "Authorization token")
	fs.Var(&stringFlag{&fv.Model, &fv.ModelSet}, "model", "model")
	fs.Var(&stringFlag{&fv.Language, &fv.LanguageSet}, "language", "language")
	fs.Var(&stringFlag{&fv.Prompt, &fv.PromptSet}, "prompt", "prompt")
	fs.Var(&stringFlag{&fv.TEXTPath, &fv.TEXTPathSet}, "text-path", "JSON path to extract text")
	fs.Var(&stringFlag{&fv.ExtraConfig, &fv.ExtraConfigSet}, "extra-config", "extra JSON config to merge into request payload")
	fs.Var(&stringFlag{&fv.VocabularyPath, &fv.VocabularyPathSet}, "vocabulary", "vocabulary file (comma or newline separated terms)")

	fs.Var(&intFlag{&fv.DeviceID, &fv.DeviceIDSet}, "device", "input device index (-1 = default)")
	fs.Var(&stringFlag{&fv.Hotkey, &fv.HotkeySet}, "hotkey", "push-to-talk chord, e.g. ctrl_r+alt_gr")
	fs.Var(&intFlag{&fv.SampleRate, &fv.SampleRateSet}, "sampling-rate", "capture sampling rate (Hz)")
	// alias
	fs.Var(&intFlag{&fv.SampleRate, &fv.SampleRateSet}, "sr", "alias for -sampling-rate")
	fs.Var(&intFlag{&fv.UploadSampleRate, &fv.UploadSampleRateSet}, "upload-rate", "upload sample rate (Hz, 0 = capture rate)")
	fs.Var(&floatFlag{&fv.MaxRecording, &fv.MaxRecordingSet}, "max-seconds", "max recording length in seconds")
	fs.Var(&floatFlag{&fv.MinRecording, &fv.MinRecordingSet}, "min-seconds", "min recording length in seconds")
	fs.Var(&floatFlag{&fv.BoostDB, &fv.BoostDBSet}, "boost-db", "gain applied before upload (dB)")
	fs.Var(&boolFlag{&fv.Normalize, &fv.NormalizeSet}, "normalize", "normalize loudness before upload (true/false)")

	fs.Var(&intFlag{&fv.Workers, &fv.WorkersSet}, "workers", "transcription workers")
	fs.Var(&intFlag{&fv.QueueSize, &fv.QueueSizeSet}, "queue-size", "max queued sessions (0 = unbounded)")
	fs.Var(&intFlag{&fv.RequestTimeout, &fv.RequestTimeoutSet}, "request-timeout", "request timeout seconds")
	fs.Var(&boolFlag{&fv.EnableHTTP2, &fv.EnableHTTP2Set}, "enable-http2", "enable HTTP/2 (true/false)")
	fs.Var(&boolFlag{&fv.VerifySSL, &fv.VerifySSLSet}, "verify-ssl", "verify TLS certificates (true/false)")

	fs.Var(&stringFlag{&fv.CacheDir, &fv.CacheDirSet}, "cache-dir", "cache directory")
	fs.Var(&boolFlag{&fv.KeepCache, &fv.KeepCacheSet}, "keep-cache", "keep cache files (true/false)")
	fs.Var(&boolFlag{&fv.Notification, &fv.NotificationSet}, "notification", "enable desktop notifications (true/false)")
	fs.Var(&boolFlag{&fv.Sound, &fv.SoundSet}, "sound", "enable audible cues (true/false)")
	fs.Var(&stringFlag{&fv.StatusAddr, &fv.StatusAddrSet}, "status-addr", "serve status API on host:port")
	fs.Var(&stringFlag{&fv.LogLevel, &fv.LogLevelSet}, "log-level", "log level (trace, debug, info, warn, error)")
	fs.Var(&stringFlag{&fv.LogFile, &fv.LogFileSet}, "log-file", "rotating log file path")

	fs.Var(&stringFlag{&fv.OutputPath, &fv.OutputPathSet}, "output", "output txt path for -file mode")

	return fv
}

// ApplyFlags applies present flags to the config.
func ApplyFlags(cfg *Config, fv *FlagValues) {
	if fv.ProviderSet {
		cfg.Provider = fv.Provider
	}
	if fv.APIEndpointSet {
		cfg.APIEndpoint = fv.APIEndpoint
	}
	if fv.TokenSet {
		cfg.Token = fv.Token
	}
	if fv.ModelSet {
		cfg.Model = fv.Model
	}
	if fv.LanguageSet {
		cfg.Language = fv.Language
	}
	if fv.PromptSet {
		cfg.Prompt = fv.Prompt
	}
	if fv.TEXTPathSet {
		cfg.TEXTPath = fv.TEXTPath
	}
	if fv.ExtraConfigSet {
		cfg.ExtraConfig = fv.ExtraConfig
	}
	if fv.VocabularyPathSet {
		cfg.VocabularyPath = fv.VocabularyPath
	}

	if fv.DeviceIDSet {
		cfg.DeviceID = fv.DeviceID
	}
	if fv.HotkeySet {
		cfg.Hotkey = NormalizeHotkey(fv.Hotkey)
	}
	if fv.SampleRateSet {
		cfg.SampleRate = fv.SampleRate
	}
	if fv.UploadSampleRateSet {
		cfg.UploadSampleRate = fv.UploadSampleRate
	}
	if fv.MaxRecordingSet {
		cfg.MaxRecordingSeconds = fv.MaxRecording
	}
	if fv.MinRecordingSet {
		cfg.MinRecordingSeconds = fv.MinRecording
	}
	if fv.BoostDBSet {
		cfg.BoostDB = fv.BoostDB
	}
	if fv.NormalizeSet {
		cfg.Normalize = fv.Normalize
	}

	if fv.WorkersSet {
		cfg.Workers = fv.Workers
	}
	if fv.QueueSizeSet {
		cfg.QueueSize = fv.QueueSize
	}
	if fv.RequestTimeoutSet {
		cfg.RequestTimeout = fv.RequestTimeout
	}
	if fv.EnableHTTP2Set {
		cfg.EnableHTTP2 = fv.EnableHTTP2
	}
	if fv.VerifySSLSet {
		cfg.VerifySSL = fv.VerifySSL
	}

	if fv.CacheDirSet {
		cfg.CacheDir = fv.CacheDir
	}
	if fv.KeepCacheSet {
		cfg.KeepCache = fv.KeepCache
	}
	if fv.NotificationSet {
		cfg.Notification = fv.Notification
	}
	if fv.SoundSet {
		cfg.Sound = fv.Sound
	}
	if fv.StatusAddrSet {
		cfg.StatusAddr = fv.StatusAddr
	}
	if fv.LogLevelSet {
		cfg.LogLevel = fv.LogLevel
	}
	if fv.LogFileSet {
		cfg.LogFile = fv.LogFile
	}
}

// AnySet reports whether any config flag was explicitly set by the user.
func (fv *FlagValues) AnySet() bool {
	return fv.ProviderSet ||
		fv.APIEndpointSet ||
		fv.TokenSet ||
		fv.ModelSet ||
		fv.LanguageSet ||
		fv.PromptSet ||
		fv.TEXTPathSet ||
		fv.ExtraConfigSet ||
		fv.VocabularyPathSet ||
		fv.DeviceIDSet ||
		fv.HotkeySet ||
		fv.SampleRateSet ||
		fv.UploadSampleRateSet ||
		fv.MaxRecordingSet ||
		fv.MinRecordingSet ||
		fv.BoostDBSet ||
		fv.NormalizeSet ||
		fv.WorkersSet ||
		fv.QueueSizeSet ||
		fv.RequestTimeoutSet ||
		fv.EnableHTTP2Set ||
		fv.VerifySSLSet ||
		fv.CacheDirSet ||
		fv.KeepCacheSet ||
		fv.NotificationSet ||
		fv.SoundSet ||
		fv.StatusAddrSet ||
		fv.LogLevelSet ||
		fv.LogFileSet ||
		fv.OutputPathSet
}
