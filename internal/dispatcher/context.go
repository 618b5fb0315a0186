package dispatcher

import "context"

type correlationKey struct{}

// WithCorrelationID attaches the request correlation id used in journal replay messages
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
