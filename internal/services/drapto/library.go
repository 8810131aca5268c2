package drapto

import (
	"context"

	draptolib "github.com/five82/drapto"
)

// Library runs encodes in-process through the drapto Go API instead of
// shelling out to a binary.
type Library struct {
	settings
}

// NewLibrary builds an in-process client. Options that only apply to the
// CLI, such as the binary path and log directory, are accepted and ignored.
func NewLibrary(opts ...Option) *Library {
	lib := &Library{}
	for _, opt := range opts {
		opt(&lib.settings)
	}
	return lib
}

// Encode runs a drapto encode for inputPath, forwarding reporter events to
// progress when a callback is supplied.
func (l *Library) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	outDir, err := checkEncodeArgs(inputPath, outputDir)
	if err != nil {
		return "", err
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", err
	}

	var reporter draptolib.Reporter
	if progress != nil {
		reporter = newReporterAdapter(progress)
	}

	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outDir, reporter); err != nil {
		return "", err
	}
	return OutputPath(inputPath, outDir), nil
}

var _ Client = (*Library)(nil)
