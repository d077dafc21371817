package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithContextIncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	ctx := WithRequestID(context.Background(), "abc-123")
	InfoWithContext(ctx, "relayed to %s", "jane@example.com")

	require.Contains(t, buf.String(), "[req_id=abc-123] relayed to jane@example.com")
}

func TestWithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	ErrorWithContext(context.Background(), "boom")

	require.Contains(t, buf.String(), "boom")
	require.NotContains(t, buf.String(), "req_id")
	require.Empty(t, RequestID(context.Background()))
}

func TestInfoStruct(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	InfoStruct(struct{ Host string }{Host: "smtp.example.com"})

	require.Contains(t, buf.String(), "Host: (string) (len=16) \"smtp.example.com\"")
}
