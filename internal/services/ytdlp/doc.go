// Package ytdlp wraps the yt-dlp command line downloader used by the fetch
// stage. Downloads are audio-only, post-processed by ffmpeg into the
// configured format, and streamed through a progress callback.
package ytdlp
