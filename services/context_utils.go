package services

import "context"

// persistentContext keeps request values (request id) but drops cancellation,
// so post-commit work survives the HTTP request returning.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
