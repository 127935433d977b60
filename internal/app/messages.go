package app

// DocumentSaved is published after a successful save.
type DocumentSaved struct {
	Path  string
	Bytes int
	// Auto is true for saves made by the autosaver.
	Auto bool
}

// DocumentEdited is published after every edit.
type DocumentEdited struct {
	Length int
}

// DocumentSaveFailed is published when a save fails.
type DocumentSaveFailed struct {
	Path string
	Err  error
}
