// Package drapto integrates the Drapto AV1 encoder as an alternative backend
// for video jobs.
//
// It exposes a Client interface with two implementations: CLI shells out to
// the drapto binary and parses its JSON progress stream, while Library calls
// the Drapto Go library directly and adapts its Reporter callbacks into typed
// ProgressUpdate values. Tests can swap in fakes to avoid executing the real
// encoder while still exercising worker behaviour.
package drapto
