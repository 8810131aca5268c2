package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"ffui/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values fall back
	// to info.
	Level string
	// Format selects console (the default) or json output.
	Format string
	// OutputPaths lists destinations: "stdout", "stderr", or file paths.
	OutputPaths []string
}

// New constructs a slog logger from opts.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))

	sink, err := openSinks(opts.OutputPaths)
	if err != nil {
		return nil, err
	}

	handler, err := buildHandler(opts.Format, sink, level)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

// NewFromConfig creates the daemon logger: human-readable output on stdout in
// the configured format, teed with a JSON stream into the daemon log file so
// `ffui logs` always has structured lines to tail.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Logging.Level))
	addSource := level.Level() <= slog.LevelDebug

	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := openLogFile(cfg.DaemonLogPath())
	if err != nil {
		return nil, err
	}

	console := slog.Handler(newConsoleHandler(os.Stdout, level, addSource))
	if strings.EqualFold(strings.TrimSpace(cfg.Logging.Format), "json") {
		console = newJSONHandler(os.Stdout, level, addSource)
	}
	return slog.New(TeeHandler(console, newJSONHandler(file, level, addSource))), nil
}

func buildHandler(format string, w io.Writer, level *slog.LevelVar) (slog.Handler, error) {
	addSource := level.Level() <= slog.LevelDebug
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		return newConsoleHandler(w, level, addSource), nil
	case "json":
		return newJSONHandler(w, level, addSource), nil
	}
	return nil, fmt.Errorf("log format: unsupported value %q", format)
}

var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func parseLevel(name string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// openSinks resolves output paths into a single writer. "stdout" and "stderr"
// map to the process streams, anything else is opened for append, and
// duplicates collapse. An empty list means stdout.
func openSinks(paths []string) (io.Writer, error) {
	var (
		writers []io.Writer
		seen    = map[string]bool{}
	)
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			file, err := openLogFile(path)
			if err != nil {
				return nil, err
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

func newJSONHandler(w io.Writer, level *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   addSource,
		ReplaceAttr: renameJSONKeys,
	})
}

// renameJSONKeys rewrites slog's built-in record keys to the compact names
// the log tailer expects: ts, level, msg, plus file:line for source.
func renameJSONKeys(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Key = "level"
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "msg"
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(filepath.Base(src.File) + ":" + strconv.Itoa(src.Line))
		}
	}
	return attr
}

// consoleHandler renders one record per line for humans watching the daemon:
//
//	2026-01-02T15:04:05Z INFO worker: encode started job_id=ab12 input=movie.mkv
//
// The component attribute is pulled in front of the message; remaining attrs
// trail as key=value pairs. Attrs bound with With are rendered once and
// reused.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	prefix    string
	preformat []byte
	component string
	addSource bool
}

func newConsoleHandler(w io.Writer, level *slog.LevelVar, addSource bool) *consoleHandler {
	return &consoleHandler{mu: new(sync.Mutex), out: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	buf := make([]byte, 0, 256)

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf = ts.UTC().AppendFormat(buf, time.RFC3339)
	buf = append(buf, ' ')
	buf = append(buf, levelTag(record.Level)...)
	buf = append(buf, ' ')

	component := h.component
	if component == "" && h.prefix == "" {
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key != FieldComponent {
				return true
			}
			component = attr.Value.Resolve().String()
			return false
		})
	}
	if component != "" {
		buf = append(buf, component...)
		buf = append(buf, ": "...)
	}

	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf = append(buf, msg...)
	} else {
		buf = append(buf, "(no message)"...)
	}

	if h.addSource {
		if src := record.Source(); src != nil {
			buf = append(buf, " ["...)
			buf = append(buf, filepath.Base(src.File)...)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, int64(src.Line), 10)
			buf = append(buf, ']')
		}
	}

	buf = append(buf, h.preformat...)
	record.Attrs(func(attr slog.Attr) bool {
		if h.prefix == "" && attr.Key == FieldComponent {
			return true
		}
		buf = appendAttr(buf, h.prefix, attr)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	pre := append([]byte(nil), h.preformat...)
	for _, attr := range attrs {
		if h.prefix == "" && attr.Key == FieldComponent {
			if next.component == "" {
				next.component = attr.Value.Resolve().String()
			}
			continue
		}
		pre = appendAttr(pre, h.prefix, attr)
	}
	next.preformat = pre
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

// appendAttr renders attr as " key=value", expanding groups into dotted keys.
func appendAttr(buf []byte, prefix string, attr slog.Attr) []byte {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return buf
	}
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = joinKey(prefix, attr.Key)
		}
		for _, nested := range attr.Value.Group() {
			buf = appendAttr(buf, next, nested)
		}
		return buf
	}
	key := joinKey(prefix, attr.Key)
	if key == "" {
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, key...)
	buf = append(buf, '=')
	return appendValue(buf, attr.Value)
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendToken(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(buf, time.RFC3339)
	}
	if err, ok := v.Any().(error); ok {
		return appendToken(buf, err.Error())
	}
	return appendToken(buf, fmt.Sprint(v.Any()))
}

// appendToken writes s, quoting it when it is empty or contains characters
// that would break key=value parsing.
func appendToken(buf []byte, s string) []byte {
	if s == "" || strings.IndexFunc(s, breaksToken) >= 0 {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func breaksToken(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

var levelTags = []struct {
	min slog.Level
	tag string
}{
	{slog.LevelError, "ERROR"},
	{slog.LevelWarn, "WARN"},
	{slog.LevelInfo, "INFO"},
}

func levelTag(level slog.Level) string {
	for _, t := range levelTags {
		if level >= t.min {
			return t.tag
		}
	}
	return "DEBUG"
}
