package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"image-studio-backend/internal/gate"
	"image-studio-backend/internal/middleware"
	"image-studio-backend/internal/models"
	"image-studio-backend/internal/services"
	"image-studio-backend/internal/transform"
)

// maxUploadBytes bounds a single submitted image.
const maxUploadBytes = 32 << 20

type SubmitHandler struct {
	submissions *services.SubmissionService
}

func NewSubmitHandler(submissions *services.SubmissionService) *SubmitHandler {
	return &SubmitHandler{submissions: submissions}
}

// callerFrom builds the service-level caller from the identity middleware.
func callerFrom(c *gin.Context) services.Caller {
	if id, ok := middleware.UserID(c); ok {
		return services.Caller{UserID: id, Authenticated: true}
	}
	return services.Caller{NetworkAddress: middleware.NetworkAddress(c)}
}

// refuse writes an entitlement refusal with its machine-readable reason.
func refuse(c *gin.Context, outcome gate.Outcome) {
	c.JSON(outcome.HTTPStatus(), models.ErrorResponse{
		Error:   "submission refused",
		Message: outcome.Message(),
		Reason:  string(outcome),
	})
}

// Submit godoc
// @Summary     Transform one image
// @Description Checks the caller's entitlement, runs the image through the transformation service and records the usage.
// @Description
// @Description Anonymous callers are identified by network address and must register an email first.
// @Description Refusals carry a machine-readable `reason`: email_required (401), limit_reached (403),
// @Description quota_exceeded (402) or user_not_found (404).
// @Tags        transform
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       mode  path     string true  "Transformation mode" Enums(enhance, upscale)
// @Param       image formData file   true  "Image to transform"
// @Success     200 {object} models.SubmitResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     402 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /transform/{mode} [post]
func (h *SubmitHandler) Submit(c *gin.Context) {
	mode, err := transform.ParseMode(c.Param("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid mode", Message: err.Error()})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "image file is required",
			Message: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to open image", Message: err.Error()})
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read image", Message: err.Error()})
		return
	}

	contentType := mimetype.Detect(data).String()
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "unsupported file type",
			Message: contentType + " is not an image",
		})
		return
	}

	options := make(map[string]string)
	if form := c.Request.MultipartForm; form != nil {
		for k, v := range form.Value {
			if len(v) > 0 {
				options[k] = v[0]
			}
		}
	}

	res, err := h.submissions.Submit(c.Request.Context(), callerFrom(c), services.Submission{
		Image:       data,
		ContentType: contentType,
		Mode:        mode,
		Options:     options,
	})
	if err != nil {
		var refusal *gate.RefusalError
		switch {
		case errors.As(err, &refusal):
			refuse(c, refusal.Outcome)
		case errors.Is(err, services.ErrTransformFailed):
			c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "transformation failed", Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "submission failed", Message: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, models.SubmitResponse{
		Mode:        string(res.Mode),
		ResultRef:   res.ResultRef,
		ContentType: res.ContentType,
		ImagesUsed:  res.ImagesUsed,
	})
}
