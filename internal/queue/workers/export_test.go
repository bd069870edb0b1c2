package workers

import "context"

// SetAttempt fixes the retry position the worker believes it is at.
func (w *AlignWorker) SetAttempt(retry, maxRetry int) {
	w.attempt = func(context.Context) (int, int, bool) { return retry, maxRetry, true }
}
