package drapto

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestNewCLIDefaults(t *testing.T) {
	cli := NewCLI()
	if cli.binary != "drapto" {
		t.Fatalf("default binary = %q, want drapto", cli.binary)
	}
	cli = NewCLI(WithBinary(""))
	if cli.binary != "drapto" {
		t.Fatalf("empty override replaced default binary with %q", cli.binary)
	}
	cli = NewCLI(WithBinary("/opt/drapto"))
	if cli.binary != "/opt/drapto" {
		t.Fatalf("binary override = %q, want /opt/drapto", cli.binary)
	}
}

func TestEncodeValidatesArguments(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		outputDir string
	}{
		{"empty input", "", "/tmp/out"},
		{"empty output dir", "/media/movie.mkv", ""},
		{"blank output dir", "/media/movie.mkv", "  \t"},
	}
	cli := NewCLI()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := cli.Encode(context.Background(), tc.input, tc.outputDir, nil); err == nil {
				t.Fatalf("Encode(%q, %q) succeeded, want error", tc.input, tc.outputDir)
			}
		})
	}
}

func TestEncodeCommandLine(t *testing.T) {
	captured := fakeEncoder(t, "", 0)

	cli := NewCLI(WithPreset(6), WithDisableDenoise(true), WithLogDir("/var/log/ffui/drapto"))
	dir := t.TempDir()
	if _, err := cli.Encode(context.Background(), filepath.Join(dir, "movie.mkv"), filepath.Join(dir, "out"), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	args := *captured
	prefix := []string{"encode", "--input", filepath.Join(dir, "movie.mkv"), "--output", filepath.Join(dir, "out")}
	if len(args) < len(prefix) {
		t.Fatalf("command too short: %v", args)
	}
	for i, want := range prefix {
		if args[i] != want {
			t.Fatalf("arg[%d] = %q, want %q (full: %v)", i, args[i], want, args)
		}
	}
	for _, flag := range []string{"--progress-json", "--responsive", "--no-denoise"} {
		if flagValue(args, flag) == nil {
			t.Fatalf("missing %s in %v", flag, args)
		}
	}
	if got := flagValue(args, "--preset"); got == nil || *got != "6" {
		t.Fatalf("--preset value = %v, want 6 (full: %v)", got, args)
	}
	if got := flagValue(args, "--log-dir"); got == nil || *got != "/var/log/ffui/drapto" {
		t.Fatalf("--log-dir value = %v (full: %v)", got, args)
	}

	// Without options the conditional flags must stay off the command line.
	cli = NewCLI()
	if _, err := cli.Encode(context.Background(), filepath.Join(dir, "movie.mkv"), filepath.Join(dir, "out"), nil); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	args = *captured
	for _, flag := range []string{"--preset", "--no-denoise", "--log-dir"} {
		if flagValue(args, flag) != nil {
			t.Fatalf("unexpected %s in %v", flag, args)
		}
	}
}

func TestEncodeStreamsProgress(t *testing.T) {
	script := strings.Join([]string{
		`{"type":"stage_progress","percent":0,"stage":"analysis","message":"detecting crop"}`,
		`{"type":"encoding_progress","percent":42.5,"stage":"encoding","eta_seconds":420,"speed":2.4,"fps":61.2,"bitrate":"4200kbps","total_frames":81342,"current_frame":34567}`,
		`{"type":"stage_progress","percent":100,"stage":"complete","message":"finished"}`,
		"",
	}, "\n")
	fakeEncoder(t, script, 0)

	cli := NewCLI()
	dir := t.TempDir()
	input := filepath.Join(dir, "source.mkv")

	var updates []ProgressUpdate
	path, err := cli.Encode(context.Background(), input, filepath.Join(dir, "encoded"), func(update ProgressUpdate) {
		updates = append(updates, update)
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if want := filepath.Join(dir, "encoded", "source.mkv"); path != want {
		t.Fatalf("output path = %q, want %q", path, want)
	}
	if len(updates) != 3 {
		t.Fatalf("got %d updates, want 3", len(updates))
	}
	if updates[0].Type != EventTypeStageProgress || updates[0].Message != "detecting crop" {
		t.Fatalf("first update = %+v", updates[0])
	}
	if updates[2].Percent != 100 {
		t.Fatalf("final percent = %f, want 100", updates[2].Percent)
	}

	enc := updates[1]
	if enc.Type != EventTypeEncodingProgress {
		t.Fatalf("middle update type = %q", enc.Type)
	}
	if enc.ETA != 7*time.Minute {
		t.Fatalf("eta = %s, want 7m", enc.ETA)
	}
	if enc.Speed != 2.4 || enc.FPS != 61.2 {
		t.Fatalf("speed/fps = %f/%f", enc.Speed, enc.FPS)
	}
	if enc.TotalFrames != 81342 || enc.CurrentFrame != 34567 {
		t.Fatalf("frames = %d/%d", enc.CurrentFrame, enc.TotalFrames)
	}
	if enc.Bitrate != "4200kbps" {
		t.Fatalf("bitrate = %q", enc.Bitrate)
	}
}

func TestEncodeReportsExitFailure(t *testing.T) {
	fakeEncoder(t, "panic: encoder blew up\n", 1)

	cli := NewCLI()
	dir := t.TempDir()
	_, err := cli.Encode(context.Background(), filepath.Join(dir, "movie.mkv"), filepath.Join(dir, "out"), nil)
	if err == nil {
		t.Fatal("Encode succeeded, want failure")
	}
	if !strings.Contains(err.Error(), "drapto encode failed") {
		t.Fatalf("error = %v", err)
	}
}

func TestEncodeIgnoresUnparsableLines(t *testing.T) {
	script := strings.Join([]string{
		"drapto 1.2.3 starting",
		"{broken",
		`{"type":"encoding_progress","percent":75,"stage":"encoding","eta_seconds":90}`,
		"",
	}, "\n")
	fakeEncoder(t, script, 0)

	cli := NewCLI()
	dir := t.TempDir()
	var updates []ProgressUpdate
	if _, err := cli.Encode(context.Background(), filepath.Join(dir, "clip.mkv"), filepath.Join(dir, "out"), func(update ProgressUpdate) {
		updates = append(updates, update)
	}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates from noisy output, want 1", len(updates))
	}
	if updates[0].Percent != 75 || updates[0].ETA != 90*time.Second {
		t.Fatalf("surviving update = %+v", updates[0])
	}
}

func TestParseEventLine(t *testing.T) {
	update, ok := parseEventLine([]byte(`{"type":"warning","warning":"low disk space"}`))
	if !ok {
		t.Fatal("valid warning line rejected")
	}
	if update.Type != EventTypeWarning || update.Warning != "low disk space" {
		t.Fatalf("warning update = %+v", update)
	}
	if update.ETA != 0 {
		t.Fatalf("eta defaulted to %s, want 0", update.ETA)
	}

	if _, ok := parseEventLine([]byte("plain text")); ok {
		t.Fatal("non-JSON line accepted")
	}
}

func TestOutputPath(t *testing.T) {
	cases := []struct {
		input     string
		outputDir string
		want      string
	}{
		{"/media/rips/Movie (2019).mkv", "/srv/encoded", "/srv/encoded/Movie (2019).mkv"},
		{"/media/show.s01e02.avi", "/srv/encoded", "/srv/encoded/show.s01e02.mkv"},
		{"clip.MP4", " /srv/encoded ", "/srv/encoded/clip.mkv"},
	}
	for _, tc := range cases {
		if got := OutputPath(tc.input, tc.outputDir); got != tc.want {
			t.Fatalf("OutputPath(%q, %q) = %q, want %q", tc.input, tc.outputDir, got, tc.want)
		}
	}
}

// fakeEncoder swaps commandContext for one that re-executes the test binary
// as a stand-in encoder printing script and exiting with code. It returns a
// pointer to the most recently captured argument list.
func fakeEncoder(t *testing.T, script string, code int) *[]string {
	t.Helper()
	captured := &[]string{}
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*captured = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestFakeEncoderProcess")
		cmd.Env = append(os.Environ(),
			"FAKE_ENCODER_PROCESS=1",
			"FAKE_ENCODER_SCRIPT="+script,
			"FAKE_ENCODER_EXIT="+strconv.Itoa(code),
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return captured
}

// TestFakeEncoderProcess is the fake encoder body; it only runs when
// re-executed by fakeEncoder.
func TestFakeEncoderProcess(t *testing.T) {
	if os.Getenv("FAKE_ENCODER_PROCESS") != "1" {
		return
	}
	fmt.Print(os.Getenv("FAKE_ENCODER_SCRIPT"))
	code, _ := strconv.Atoi(os.Getenv("FAKE_ENCODER_EXIT"))
	os.Exit(code)
}

func flagValue(args []string, flag string) *string {
	for i, arg := range args {
		if arg != flag {
			continue
		}
		if i+1 < len(args) {
			return &args[i+1]
		}
		empty := ""
		return &empty
	}
	return nil
}
