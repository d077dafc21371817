package email

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func parse(t *testing.T, raw []byte) (*mail.Message, string, map[string]string) {
	t.Helper()
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	require.NoError(t, err)
	return m, mediaType, params
}

func TestBuild_Alternative(t *testing.T) {
	raw, err := Build(Message{
		From:     "relay@example.com",
		FromName: "Telar Relay",
		To:       []string{"ops@example.com"},
		Cc:       []string{"a@example.com", "b@example.com"},
		Subject:  "Nouvelle demande é",
		Text:     "plain body",
		HTML:     "<p>html body</p>",
	}, testDate)
	require.NoError(t, err)

	m, mediaType, params := parse(t, raw)
	assert.Equal(t, `"Telar Relay" <relay@example.com>`, m.Header.Get("From"))
	assert.Equal(t, "ops@example.com", m.Header.Get("To"))
	assert.Equal(t, "a@example.com, b@example.com", m.Header.Get("Cc"))
	assert.Equal(t, "1.0", m.Header.Get("MIME-Version"))

	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Nouvelle demande é", subject)

	require.Equal(t, "multipart/alternative", mediaType)
	reader := multipart.NewReader(m.Body, params["boundary"])

	part, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", part.Header.Get("Content-Type"))
	body, _ := io.ReadAll(part)
	assert.Equal(t, "plain body", string(body))

	part, err = reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", part.Header.Get("Content-Type"))
	body, _ = io.ReadAll(part)
	assert.Equal(t, "<p>html body</p>", string(body))

	_, err = reader.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBuild_WithAttachment(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 30)
	raw, err := Build(Message{
		From:    "relay@example.com",
		To:      []string{"ops@example.com"},
		Subject: "with file",
		HTML:    "<p>see attached</p>",
		Attachments: []Attachment{
			{Filename: "cv.pdf", ContentType: "application/pdf", Content: content},
		},
	}, testDate)
	require.NoError(t, err)

	m, mediaType, params := parse(t, raw)
	require.Equal(t, "multipart/mixed", mediaType)
	assert.Empty(t, m.Header.Get("Cc"))

	reader := multipart.NewReader(m.Body, params["boundary"])

	altPart, err := reader.NextPart()
	require.NoError(t, err)
	altType, _, err := mime.ParseMediaType(altPart.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", altType)

	filePart, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", filePart.Header.Get("Content-Type"))
	assert.Equal(t, "cv.pdf", filePart.FileName())

	// multipart.Reader does not decode base64; check line length and payload.
	encoded, err := io.ReadAll(filePart)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(encoded)), "\r\n") {
		assert.LessOrEqual(t, len(line), base64LineLength)
	}
	decoded, err := decodeBase64Lines(string(encoded))
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

func TestBuild_DefaultsAttachmentType(t *testing.T) {
	raw, err := Build(Message{
		From:        "relay@example.com",
		To:          []string{"ops@example.com"},
		Text:        "x",
		Attachments: []Attachment{{Content: []byte("abc")}},
	}, testDate)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Content-Type: application/octet-stream")
	assert.Contains(t, string(raw), `filename=attachment`)
}

func TestBuild_RequiresRecipient(t *testing.T) {
	_, err := Build(Message{From: "relay@example.com"}, testDate)
	require.Error(t, err)
}

func TestMessage_Recipients(t *testing.T) {
	msg := Message{To: []string{"a@x.io"}, Cc: []string{"b@x.io", "c@x.io"}}
	assert.Equal(t, []string{"a@x.io", "b@x.io", "c@x.io"}, msg.Recipients())
}
