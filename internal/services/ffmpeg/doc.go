// Package ffmpeg wraps the ffmpeg and ffprobe command-line tools that power
// the default transcode backend.
//
// It exposes a Client interface covering the four operations the daemon
// needs: probing media metadata, running an encode with live progress from
// ffmpeg's -progress stream, concatenating the partial segments a paused
// encode leaves behind, and grabbing preview thumbnails. Encodes run in their
// own process group so a pause or cancel can interrupt ffmpeg cleanly; SIGINT
// lets it flush the container trailer, which keeps partial segments playable
// and resumable.
package ffmpeg
