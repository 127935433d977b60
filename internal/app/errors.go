package app

import "errors"

var (
	// ErrQuit signals that the application should exit normally.
	ErrQuit = errors.New("quit requested")

	// ErrAlreadyRunning is returned by Run when the application is running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrFinished is returned by Run once a previous Run has returned.
	ErrFinished = errors.New("application has already run")

	// ErrNoPath is returned when saving a document that has no file.
	ErrNoPath = errors.New("document has no path")
)
