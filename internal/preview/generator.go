// Package preview generates and removes job thumbnails. Thumbnails are
// single frames grabbed from the input media, stored in the data directory
// and referenced from job snapshots by path plus a revision counter.
package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ffui/internal/config"
	"ffui/internal/queue"
	"ffui/internal/services/ffmpeg"
)

// Generator produces thumbnail images for queued jobs.
type Generator struct {
	client         ffmpeg.Client
	dir            string
	capturePercent int
	maxWidth       int
	enabled        bool
}

// NewGenerator builds a Generator from configuration. The client performs the
// actual frame grab.
func NewGenerator(cfg *config.Config, client ffmpeg.Client) *Generator {
	return &Generator{
		client:         client,
		dir:            cfg.PreviewDir(),
		capturePercent: cfg.Preview.CapturePercent,
		maxWidth:       cfg.Preview.MaxWidth,
		enabled:        cfg.Preview.Enabled,
	}
}

// Path returns where the job's thumbnail lives on disk, whether or not it
// exists yet.
func (g *Generator) Path(jobID string) string {
	return filepath.Join(g.dir, jobID+".jpg")
}

// Generate grabs a thumbnail frame for the job and returns its path. Audio
// jobs have no visual frame and return an empty path with no error, as does a
// disabled generator. The capture point is a configured percentage into the
// media; jobs without a known duration capture the first frame.
func (g *Generator) Generate(ctx context.Context, job *queue.Job) (string, error) {
	if g == nil || !g.enabled || job == nil {
		return "", nil
	}
	if job.Type == queue.JobTypeAudio {
		return "", nil
	}
	if job.InputPath == "" {
		return "", fmt.Errorf("job %s has no input path", job.ID)
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create preview dir: %w", err)
	}

	var at float64
	if job.Type == queue.JobTypeVideo && job.Media != nil && job.Media.DurationSeconds != nil {
		at = *job.Media.DurationSeconds * float64(g.capturePercent) / 100
	}

	out := g.Path(job.ID)
	err := g.client.Screenshot(ctx, ffmpeg.ScreenshotRequest{
		InputPath:  job.InputPath,
		OutputPath: out,
		AtSeconds:  at,
		MaxWidth:   g.maxWidth,
	})
	if err != nil {
		return "", fmt.Errorf("capture preview: %w", err)
	}
	return out, nil
}

// Remove deletes the job's thumbnail if present.
func (g *Generator) Remove(jobID string) {
	if g == nil || jobID == "" {
		return
	}
	_ = os.Remove(g.Path(jobID))
}
