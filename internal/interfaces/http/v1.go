package http

import (
	"github.com/labstack/echo/v4"
	"github.com/studylane/sync-agent/internal/notify"
)

func v1Endpoint(
	AnswerHandler *AnswerHandler,
	ProgressHandler *ProgressHandler,
	AttemptHandler *AttemptHandler,
	LessonHandler *LessonHandler,
	StatusHandler *StatusHandler,
	hub *notify.Hub,
	middlewares ...echo.MiddlewareFunc,
) *endpoint {
	return &endpoint{
		apiVersion:  "v1",
		middlewares: middlewares,
		groups: []*apiGroup{
			{
				prefix: "/answers",
				routes: []*route{
					{method: "POST", path: "", handler: AnswerHandler.HandleSubmitAnswer},
					{method: "POST", path: "/retry", handler: AnswerHandler.HandleRetrySubmission},
					{method: "GET", path: "/state", handler: AnswerHandler.HandleGetSubmissionState},
				},
			},
			{
				prefix: "/progress",
				routes: []*route{
					{method: "POST", path: "", handler: ProgressHandler.HandleRecordProgress},
					{method: "GET", path: "/queue", handler: ProgressHandler.HandleListQueue},
					{method: "DELETE", path: "/queue", handler: ProgressHandler.HandleClearQueue},
					{method: "POST", path: "/sync", handler: ProgressHandler.HandleSyncNow},
				},
			},
			{
				prefix: "/assignments",
				routes: []*route{
					{method: "POST", path: "/:id/attempts", handler: AttemptHandler.HandleStartAttempt},
					{method: "GET", path: "/:id/attempts", handler: AttemptHandler.HandleListAttempts},
					{method: "PUT", path: "/:id/attempts/answers", handler: AttemptHandler.HandleRecordAnswer},
					{method: "POST", path: "/:id/attempts/files", handler: AttemptHandler.HandleAttachFile},
					{method: "POST", path: "/:id/attempts/finish", handler: AttemptHandler.HandleFinishAttempt},
				},
			},
			{
				prefix: "/lessons",
				routes: []*route{
					{method: "POST", path: "/sync-progress", handler: LessonHandler.HandleSyncProgress},
				},
			},
			{
				prefix: "",
				routes: []*route{
					{method: "GET", path: "/status", handler: StatusHandler.HandleGetStatus},
					{method: "POST", path: "/network", handler: StatusHandler.HandleNetworkEvent},
					{method: "GET", path: "/events", handler: hub.Handler()},
				},
			},
		},
	}
}
