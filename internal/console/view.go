package console

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"ffui/internal/queue"
)

// ViewMode selects how the visible list is ordered.
type ViewMode string

const (
	// ModeDisplay sorts the whole visible list by the configured fields.
	ModeDisplay ViewMode = "display"
	// ModeQueue groups by scheduling state: running jobs first, then the
	// waiting queue in scheduler order, then everything else.
	ModeQueue ViewMode = "queue"
)

// ParseViewMode converts a config string into a ViewMode.
func ParseViewMode(value string) (ViewMode, bool) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeDisplay:
		return ModeDisplay, true
	case ModeQueue:
		return ModeQueue, true
	default:
		return "", false
	}
}

// SortField names a sortable job attribute.
type SortField string

const (
	SortAddedTime    SortField = "addedTime"
	SortFinishedTime SortField = "finishedTime"
	SortFilename     SortField = "filename"
	SortStatus       SortField = "status"
	SortDuration     SortField = "duration"
	SortElapsed      SortField = "elapsed"
	SortProgress     SortField = "progress"
	SortType         SortField = "type"
	SortPath         SortField = "path"
	SortInputSize    SortField = "inputSize"
	SortOutputSize   SortField = "outputSize"
	SortFileCreated  SortField = "fileCreated"
	SortFileModified SortField = "fileModified"
)

var sortFields = []SortField{
	SortAddedTime,
	SortFinishedTime,
	SortFilename,
	SortStatus,
	SortDuration,
	SortElapsed,
	SortProgress,
	SortType,
	SortPath,
	SortInputSize,
	SortOutputSize,
	SortFileCreated,
	SortFileModified,
}

// SortFields returns the ordered list of sortable fields, in the order the
// console cycles through them.
func SortFields() []SortField {
	cp := make([]SortField, len(sortFields))
	copy(cp, sortFields)
	return cp
}

// ParseSortField converts a config string into a SortField.
func ParseSortField(value string) (SortField, bool) {
	candidate := SortField(strings.TrimSpace(value))
	for _, field := range sortFields {
		if candidate == field {
			return field, true
		}
	}
	return "", false
}

// Direction orders a sort ascending or descending. Jobs missing the sorted
// value always collect at the end, in either direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection converts a config string into a Direction.
func ParseDirection(value string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(value))) {
	case Ascending:
		return Ascending, true
	case Descending:
		return Descending, true
	default:
		return "", false
	}
}

// SortSpec pairs a field with a direction.
type SortSpec struct {
	Field     SortField
	Direction Direction
}

// View derives the visible, ordered job list from the model's canonical
// list. Ordering is recomputed per render and never written back, so a
// snapshot re-base cannot fight a stale local sort. Mode and sort specs are
// plain fields the console adjusts between renders; filter state is managed
// through the Set/Toggle methods so an invalid regex can fail closed.
type View struct {
	Mode      ViewMode
	Primary   SortSpec
	Secondary *SortSpec

	text         string
	regex        bool
	matcher      func(string) bool
	regexErr     error
	statusFilter map[queue.Status]struct{}
	typeFilter   map[queue.JobType]struct{}

	collator *collate.Collator
}

// NewView returns a view with the given mode and primary sort and no
// filters. Filenames and paths compare with numeric-aware collation, so
// "part2" sorts before "part10".
func NewView(mode ViewMode, primary SortSpec) *View {
	return &View{
		Mode:         mode,
		Primary:      primary,
		statusFilter: make(map[queue.Status]struct{}),
		typeFilter:   make(map[queue.JobType]struct{}),
		collator:     collate.New(language.Und, collate.Numeric, collate.IgnoreCase),
	}
}

// Visible filters the canonical list and orders it for the current mode.
// The input slice is not modified.
func (v *View) Visible(jobs []*queue.Job) []*queue.Job {
	filtered := make([]*queue.Job, 0, len(jobs))
	for _, job := range jobs {
		if v.matches(job) {
			filtered = append(filtered, job)
		}
	}
	if v.Mode == ModeQueue {
		return v.queueOrder(filtered)
	}
	v.sortJobs(filtered)
	return filtered
}

// queueOrder arranges jobs the way the scheduler sees them: running jobs
// first in arrival order, the waiting queue in scheduler position order,
// then paused and finished jobs sorted by the configured fields.
func (v *View) queueOrder(jobs []*queue.Job) []*queue.Job {
	var processing, waiting, rest []*queue.Job
	for _, job := range jobs {
		switch {
		case job.Status.IsActive():
			processing = append(processing, job)
		case job.Status == queue.StatusQueued:
			waiting = append(waiting, job)
		default:
			rest = append(rest, job)
		}
	}
	sort.SliceStable(waiting, func(i, j int) bool {
		oa, ob := waiting[i].QueueOrder, waiting[j].QueueOrder
		switch {
		case oa != nil && ob == nil:
			return true
		case oa == nil && ob != nil:
			return false
		case oa != nil && ob != nil && *oa != *ob:
			return *oa < *ob
		}
		return v.less(waiting[i], waiting[j])
	})
	v.sortJobs(rest)
	out := make([]*queue.Job, 0, len(jobs))
	out = append(out, processing...)
	out = append(out, waiting...)
	return append(out, rest...)
}

func (v *View) sortJobs(jobs []*queue.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return v.less(jobs[i], jobs[j])
	})
}

func (v *View) less(a, b *queue.Job) bool {
	if c := v.compare(a, b, v.Primary); c != 0 {
		return c < 0
	}
	if v.Secondary != nil {
		if c := v.compare(a, b, *v.Secondary); c != 0 {
			return c < 0
		}
	}
	return false
}

// PrimaryTies reports whether two or more of the given jobs compare equal
// on the primary field, which is when a secondary sort actually matters.
// The console recomputes this whenever the visible set or primary changes.
func (v *View) PrimaryTies(jobs []*queue.Job) bool {
	if len(jobs) < 2 {
		return false
	}
	sorted := append([]*queue.Job(nil), jobs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return v.compare(sorted[i], sorted[j], v.Primary) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if v.compare(sorted[i-1], sorted[i], v.Primary) == 0 {
			return true
		}
	}
	return false
}

// compare orders a against b on one field. Missing values sort after
// present ones regardless of direction, so finished jobs do not interleave
// with unfinished ones when sorting by finish time descending.
func (v *View) compare(a, b *queue.Job, spec SortSpec) int {
	var cmp int
	var aok, bok bool
	switch spec.Field {
	case SortFilename, SortPath, SortStatus, SortType:
		var as, bs string
		as, aok = stringKey(a, spec.Field)
		bs, bok = stringKey(b, spec.Field)
		if aok && bok {
			if spec.Field == SortFilename || spec.Field == SortPath {
				cmp = v.collator.CompareString(as, bs)
			} else {
				cmp = strings.Compare(as, bs)
			}
		}
	default:
		var av, bv float64
		av, aok = numericKey(a, spec.Field)
		bv, bok = numericKey(b, spec.Field)
		if aok && bok {
			switch {
			case av < bv:
				cmp = -1
			case av > bv:
				cmp = 1
			}
		}
	}
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}
	if spec.Direction == Descending {
		cmp = -cmp
	}
	return cmp
}

func stringKey(job *queue.Job, field SortField) (string, bool) {
	switch field {
	case SortFilename:
		return job.Filename, job.Filename != ""
	case SortPath:
		return job.InputPath, job.InputPath != ""
	case SortStatus:
		return string(job.Status), true
	case SortType:
		return string(job.Type), job.Type != ""
	}
	return "", false
}

func numericKey(job *queue.Job, field SortField) (float64, bool) {
	switch field {
	case SortAddedTime:
		return float64(job.CreatedAtMs), true
	case SortFinishedTime:
		if job.EndTimeMs != nil {
			return float64(*job.EndTimeMs), true
		}
	case SortDuration:
		if job.Media != nil && job.Media.DurationSeconds != nil {
			return *job.Media.DurationSeconds, true
		}
		if job.EstimatedSeconds != nil {
			return *job.EstimatedSeconds, true
		}
	case SortElapsed:
		if job.ElapsedMs != nil {
			return float64(*job.ElapsedMs), true
		}
	case SortProgress:
		return job.Progress, true
	case SortInputSize:
		if job.OriginalSizeMB > 0 {
			return job.OriginalSizeMB, true
		}
	case SortOutputSize:
		if job.OutputSizeMB != nil {
			return *job.OutputSizeMB, true
		}
	case SortFileCreated:
		if job.CreatedTimeMs != nil {
			return float64(*job.CreatedTimeMs), true
		}
	case SortFileModified:
		if job.ModifiedTimeMs != nil {
			return float64(*job.ModifiedTimeMs), true
		}
	}
	return 0, false
}

// SetTextFilter updates the free-text filter. In plain mode the text is a
// case-insensitive substring match; in regex mode it compiles as a regular
// expression. An invalid regex keeps the previously active matcher in place
// and records the error until the text compiles again or clears.
func (v *View) SetTextFilter(text string) {
	v.text = text
	if text == "" {
		v.matcher = nil
		v.regexErr = nil
		return
	}
	v.compileMatcher()
}

// SetRegexMode toggles regex interpretation of the current filter text.
func (v *View) SetRegexMode(enabled bool) {
	if v.regex == enabled {
		return
	}
	v.regex = enabled
	if v.text == "" {
		v.regexErr = nil
		return
	}
	v.compileMatcher()
}

// RegexMode reports whether the text filter is interpreted as a regex.
func (v *View) RegexMode() bool {
	return v.regex
}

// TextFilter returns the current filter text as typed, valid or not.
func (v *View) TextFilter() string {
	return v.text
}

// RegexError returns the compile error of the current filter text, or nil.
func (v *View) RegexError() error {
	return v.regexErr
}

func (v *View) compileMatcher() {
	if !v.regex {
		needle := strings.ToLower(v.text)
		v.matcher = func(haystack string) bool {
			return strings.Contains(strings.ToLower(haystack), needle)
		}
		v.regexErr = nil
		return
	}
	re, err := regexp.Compile(v.text)
	if err != nil {
		v.regexErr = err
		return
	}
	v.matcher = re.MatchString
	v.regexErr = nil
}

// ToggleStatusFilter flips one status in or out of the status filter set.
// An empty set matches every status.
func (v *View) ToggleStatusFilter(status queue.Status) {
	if _, ok := v.statusFilter[status]; ok {
		delete(v.statusFilter, status)
		return
	}
	v.statusFilter[status] = struct{}{}
}

// StatusFilterOn reports whether the given status is part of the filter set.
func (v *View) StatusFilterOn(status queue.Status) bool {
	_, ok := v.statusFilter[status]
	return ok
}

// ToggleTypeFilter flips one job type in or out of the type filter set.
func (v *View) ToggleTypeFilter(jobType queue.JobType) {
	if _, ok := v.typeFilter[jobType]; ok {
		delete(v.typeFilter, jobType)
		return
	}
	v.typeFilter[jobType] = struct{}{}
}

// TypeFilterOn reports whether the given type is part of the filter set.
func (v *View) TypeFilterOn(jobType queue.JobType) bool {
	_, ok := v.typeFilter[jobType]
	return ok
}

// ClearFilters drops all status, type, and text filters.
func (v *View) ClearFilters() {
	v.statusFilter = make(map[queue.Status]struct{})
	v.typeFilter = make(map[queue.JobType]struct{})
	v.text = ""
	v.matcher = nil
	v.regexErr = nil
}

// FiltersActive reports whether any filter narrows the visible list, which
// the console surfaces so an unexpectedly short list is explainable.
func (v *View) FiltersActive() bool {
	return len(v.statusFilter) > 0 || len(v.typeFilter) > 0 || v.text != ""
}

func (v *View) matches(job *queue.Job) bool {
	if len(v.statusFilter) > 0 {
		if _, ok := v.statusFilter[job.Status]; !ok {
			return false
		}
	}
	if len(v.typeFilter) > 0 {
		if _, ok := v.typeFilter[job.Type]; !ok {
			return false
		}
	}
	if v.matcher != nil && !v.matcher(searchText(job)) {
		return false
	}
	return true
}

// searchText builds the composite haystack the text filter matches against.
func searchText(job *queue.Job) string {
	parts := make([]string, 0, 8)
	parts = append(parts, job.Filename, job.InputPath, job.OutputPath,
		string(job.Status), string(job.Type), string(job.Source))
	if job.OriginalSizeMB > 0 {
		parts = append(parts, fmt.Sprintf("%.1fMB", job.OriginalSizeMB))
	}
	if job.OutputSizeMB != nil {
		parts = append(parts, fmt.Sprintf("%.1fMB", *job.OutputSizeMB))
	}
	return strings.Join(parts, " ")
}
