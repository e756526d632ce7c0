package core

import "context"

type contextKey string

const ctxKeyRequestInfo contextKey = "audit_request"

// RequestInfo is client metadata copied onto every audit entry of a run.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// ContextWithRequestInfo attaches client metadata for audit logging.
func ContextWithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKeyRequestInfo, info)
}

// RequestInfoFromContext returns the metadata set by ContextWithRequestInfo.
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	if v, ok := ctx.Value(ctxKeyRequestInfo).(RequestInfo); ok {
		return v
	}
	return RequestInfo{}
}
