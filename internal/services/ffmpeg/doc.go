// Package ffmpeg wraps the ffmpeg and ffprobe binaries for the convert stage.
// The pitch shift retunes audio from A4=440 Hz to A4=432 Hz while keeping the
// original duration, and conversion progress is derived from ffmpeg's
// machine-readable progress output.
package ffmpeg
