// Package app assembles the mvpdemo document editor.
//
// The demo is one Presenter and one View sharing nothing but a dispatcher and
// an event aggregator. DocumentPresenter owns the Document and registers the
// Doc.* actions. DocumentView owns tcell buttons and a status line; a binder
// connects its buttons to the dispatcher, and it learns about saves through
// DocumentSaved messages delivered on the UI loop. An autosave goroutine
// publishes from the background to show cross-goroutine marshaling.
package app
