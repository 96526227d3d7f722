package config

const (
	defaultWorkDir               = "~/.local/share/attune/work"
	defaultLogDir                = "~/.local/share/attune/logs"
	defaultAPIBind               = "0.0.0.0:8080"
	defaultAudioFormat           = "mp3"
	defaultAudioQuality          = "192K"
	defaultRequestTimeout        = 600
	defaultFetchTimeout          = 900
	defaultConvertTimeout        = 900
	defaultQueuePollInterval     = 2
	defaultErrorRetryInterval    = 10
	defaultHeartbeatInterval     = 15
	defaultHeartbeatTimeout      = 120
	defaultWorkers               = 2
	defaultRetentionMaxAgeHours  = 24
	defaultRetentionSweepMinutes = 30
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Tools: Tools{
			FFmpeg:         "ffmpeg",
			FFprobe:        "ffprobe",
			YtDlp:          "yt-dlp",
			FetchTimeout:   defaultFetchTimeout,
			ConvertTimeout: defaultConvertTimeout,
		},
		Conversion: Conversion{
			AudioFormat:    defaultAudioFormat,
			AudioQuality:   defaultAudioQuality,
			RequestTimeout: defaultRequestTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			Workers:            defaultWorkers,
		},
		Retention: Retention{
			Enabled:              true,
			MaxAgeHours:          defaultRetentionMaxAgeHours,
			SweepIntervalMinutes: defaultRetentionSweepMinutes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Conversion:     true,
			Errors:         true,
			Queue:          true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
