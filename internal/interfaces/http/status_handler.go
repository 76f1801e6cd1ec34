package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/studylane/sync-agent/internal/netmon"
	"github.com/studylane/sync-agent/internal/progress"
	"github.com/studylane/sync-agent/internal/submission"
)

type StatusHandler struct {
	monitor      *netmon.Monitor
	orchestrator *submission.Orchestrator
	queue        *progress.Queue
}

func NewStatusHandler(monitor *netmon.Monitor, orchestrator *submission.Orchestrator, queue *progress.Queue) *StatusHandler {
	handler := &StatusHandler{monitor, orchestrator, queue}
	return handler
}

// HandleGetStatus agent state snapshot for the UI
func (sh *StatusHandler) HandleGetStatus(c echo.Context) (err error) {
	return c.JSON(http.StatusOK, echo.Map{
		"network":    sh.monitor.Status(),
		"submission": sh.orchestrator.State(),
		"pending":    sh.queue.Len(),
	})
}

type networkEventPayload struct {
	Online bool `json:"online"`
}

// HandleNetworkEvent connectivity event intake from the host application,
// the agent-side equivalent of browser online/offline events
func (sh *StatusHandler) HandleNetworkEvent(c echo.Context) (err error) {
	payload := new(networkEventPayload)
	if err := c.Bind(payload); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, "Failed to parse payload"))
	}
	if payload.Online {
		sh.monitor.SetOnline()
	} else {
		sh.monitor.SetOffline()
	}
	return c.JSON(http.StatusOK, sh.monitor.Status())
}
