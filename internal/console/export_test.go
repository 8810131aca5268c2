package console

// SetClipboardForTest swaps the clipboard writer and returns a restore
// function.
func SetClipboardForTest(fn func(string) error) (restore func()) {
	prev := writeClipboard
	writeClipboard = fn
	return func() { writeClipboard = prev }
}

// SetRevealForTest swaps the file manager integration and returns a
// restore function.
func SetRevealForTest(fn func(string) error) (restore func()) {
	prev := revealInFileManager
	revealInFileManager = fn
	return func() { revealInFileManager = prev }
}
