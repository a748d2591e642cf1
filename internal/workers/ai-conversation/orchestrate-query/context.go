package orchestratequery

import "context"

type requestIDKey struct{}

// ContextWithRequestID tags ctx with the id reported in response metadata.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
