// Package logger carries a zap sugared logger through context.Context.
//
// Services keep no logger field. They decorate the context with WithName and
// WithKV, so the run id, the stage and the job id appear on every line logged
// further down the call chain. Lines go to stderr; the level follows
// --log-level.
package logger
