// Package shared holds helpers used by more than one package that belong to
// no single layer.
//
// The testutil subpackage provides a buffered slog handler so tests can
// assert on log records:
//
//	logger, logs := testutil.NewTestLogger(t)
//	handler := errors.NewErrorHandler(logger, false)
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "request failed")
package shared
