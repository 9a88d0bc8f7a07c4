// Package process runs external tools such as ffmpeg as cancellable
// subprocesses with captured output and process-group cleanup.
package process
