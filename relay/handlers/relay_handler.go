package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/schema"

	"github.com/qolzam/telar/apps/relay/internal/pkg/log"
	"github.com/qolzam/telar/apps/relay/internal/types"
	relayErrors "github.com/qolzam/telar/apps/relay/relay/errors"
	"github.com/qolzam/telar/apps/relay/relay/models"
	"github.com/qolzam/telar/apps/relay/relay/services"
)

// SuccessMessage is returned when the email was handed to the transport
const SuccessMessage = "Email sent successfully"

// HandlerConfig holds the handler settings
type HandlerConfig struct {
	// MaxAttachmentSize bounds how much of an uploaded file is read.
	MaxAttachmentSize int64
}

// RelayHandler decodes relay submissions and passes them to the service
type RelayHandler struct {
	svc     services.RelayService
	decoder *schema.Decoder
	config  HandlerConfig
}

// NewRelayHandler creates a new relay handler
func NewRelayHandler(svc services.RelayService, config HandlerConfig) *RelayHandler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	decoder.ZeroEmpty(true)

	return &RelayHandler{
		svc:     svc,
		decoder: decoder,
		config:  config,
	}
}

// SendEmail handles POST /send-email
func (h *RelayHandler) SendEmail(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		log.WarnWithContext(c.UserContext(), "Rejected malformed relay request: %v", err)
		return relayErrors.HandleError(c, err)
	}

	if err := h.svc.Relay(c.UserContext(), req); err != nil {
		return relayErrors.HandleError(c, err)
	}

	return c.Status(http.StatusOK).JSON(models.RelayResponse{
		Success: true,
		Message: SuccessMessage,
	})
}

func (h *RelayHandler) parseRequest(c *fiber.Ctx) (*models.RelayRequest, error) {
	req := &models.RelayRequest{}

	switch {
	case strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, relayErrors.NewValidationError(relayErrors.CodeInvalidRequest, "Invalid multipart form", err)
		}
		if err := h.decoder.Decode(&req.Submission, form.Value); err != nil {
			return nil, relayErrors.NewValidationError(relayErrors.CodeInvalidRequest, "Invalid form fields", err)
		}
		if files := form.File[types.FieldAttachment]; len(files) > 0 {
			attachment, err := h.readAttachment(files[0])
			if err != nil {
				return nil, relayErrors.NewValidationError(relayErrors.CodeInvalidRequest, "Unreadable attachment", err)
			}
			req.Attachment = attachment
		}

	default:
		values := make(map[string][]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			values[string(key)] = append(values[string(key)], string(value))
		})
		if err := h.decoder.Decode(&req.Submission, values); err != nil {
			return nil, relayErrors.NewValidationError(relayErrors.CodeInvalidRequest, "Invalid form fields", err)
		}
	}

	return req, nil
}

// readAttachment loads the uploaded file. Files larger than the ceiling
// are not read; their declared size is enough for the service to reject
// them once the request is authenticated.
func (h *RelayHandler) readAttachment(fh *multipart.FileHeader) (*models.Attachment, error) {
	attachment := &models.Attachment{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(types.HeaderContentType),
		Size:        fh.Size,
	}
	if h.config.MaxAttachmentSize > 0 && fh.Size > h.config.MaxAttachmentSize {
		return attachment, nil
	}

	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := io.Reader(file)
	if h.config.MaxAttachmentSize > 0 {
		reader = io.LimitReader(file, h.config.MaxAttachmentSize+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	attachment.Content = content
	attachment.Size = int64(len(content))
	return attachment, nil
}
