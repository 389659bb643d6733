package handlers

import (
	"net/http"

	"labdesk/internal/intake"
	"labdesk/internal/middleware"
	"labdesk/internal/models"

	"github.com/gin-gonic/gin"
)

// ReceiveSample registers a sample with its sets. Sets whose log could not
// be written are reported in failedSets; the response is still 201.
func (h *Handler) ReceiveSample(c *gin.Context) {
	var req intake.Request
	if !h.bind(c, &req) {
		return
	}
	res, err := h.intake.Receive(c.Request.Context(), middleware.CurrentUser(c).ID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	created(c, res)
}

func (h *Handler) GetSample(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.intake.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ListSamples(c *gin.Context) {
	samples, err := h.intake.List(c.Request.Context(), intake.SampleFilter{
		ClientID: queryID(c, "client_id"),
		Status:   models.SampleStatus(c.Query("status")),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, samples)
}

// RetrySetLog writes the log for a set that has none. An existing log is
// returned with 200.
func (h *Handler) RetrySetLog(c *gin.Context) {
	sampleID, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	setID, ok := h.paramID(c, "setId")
	if !ok {
		return
	}
	out, wrote, err := h.intake.RetrySetLog(c.Request.Context(), middleware.CurrentUser(c).ID, sampleID, setID)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if wrote {
		status = http.StatusCreated
	}
	c.JSON(status, out)
}
