// Package runner drives the executable under test through conversion
// scenarios.
//
// A scenario runs in four steps:
//
//	lock      take exclusive ownership of the output path
//	prepare   require the input image, remove a stale output
//	convert   run the executable with a bounded wait
//	verify    hash the output, compare, then chmod and delete it
//
// Every failure is an *Error carrying an ErrorKind. Kinds caused by the
// executable (NonZeroExit, ProcessTimeout, OutputMissing, HashMismatch) make
// a scenario fail, all others make it error.
package runner
