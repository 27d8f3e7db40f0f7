package logger

import "log/slog"

// Common attribute keys for consistent logging across the application

// Request attributes
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64("duration_ms", ms)
}

// Tenant and remote call attributes
func Shop(shop string) slog.Attr {
	return slog.String("shop", shop)
}

func Page(n int) slog.Attr {
	return slog.Int("page", n)
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func Records(n int) slog.Attr {
	return slog.Int("records", n)
}

func Scheme(s string) slog.Attr {
	return slog.String("scheme", s)
}

func Topic(t string) slog.Attr {
	return slog.String("topic", t)
}

func Backend(b string) slog.Attr {
	return slog.String("backend", b)
}

func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
