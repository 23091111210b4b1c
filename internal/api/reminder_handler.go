package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pecal/pecal-reminders/internal/api/shared"
	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/events"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/pecal/pecal-reminders/internal/reminder"
)

// ReminderService is the part of reminder.Service the handlers use.
type ReminderService interface {
	RunOnce(ctx context.Context) reminder.RunReport
	LastRun(ctx context.Context) (*reminder.RunReport, error)
	InspectJob(ctx context.Context, taskID int64) (*reminder.JobView, error)
}

var _ ReminderService = (*reminder.Service)(nil)

// ReminderHandler serves the cron trigger, event intake and job inspection
// endpoints.
type ReminderHandler struct {
	service ReminderService
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewReminderHandler creates a ReminderHandler.
func NewReminderHandler(service ReminderService, emitter events.EventEmitter, log *slog.Logger) *ReminderHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReminderHandler{
		service: service,
		emitter: emitter,
		logger:  log.With(slog.String("component", "reminder_handler")),
	}
}

// RunCron handles POST /api/cron/task-reminders. The pipeline absorbs its
// own failures, so the run itself always answers 200; a report that could
// not be recorded is logged.
func (h *ReminderHandler) RunCron(w http.ResponseWriter, r *http.Request) {
	report := h.service.RunOnce(r.Context())

	log := logger.FromContextOrDefault(r.Context(), h.logger)
	if report.Error != "" {
		log.Warn("reminder run finished with error",
			slog.String("run_id", report.RunID),
			slog.String("error", report.Error))
	}
	log.Info("reminder run finished",
		slog.String("run_id", report.RunID),
		slog.Int("processed_stream_events", report.ProcessedStreamEvents),
		slog.Int("sent_notifications", report.SentNotifications))

	shared.RespondWithJSON(w, r, http.StatusOK, CronRunResponse{
		Success:               true,
		RunID:                 report.RunID,
		ProcessedStreamEvents: report.ProcessedStreamEvents,
		SentNotifications:     report.SentNotifications,
	})
}

// GetLastRun handles GET /api/cron/task-reminders.
func (h *ReminderHandler) GetLastRun(w http.ResponseWriter, r *http.Request) {
	last, err := h.service.LastRun(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load last run")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, LastRunResponse{Success: true, LastRun: last})
}

// EmitEvent handles POST /api/reminders/events.
func (h *ReminderHandler) EmitEvent(w http.ResponseWriter, r *http.Request) {
	var req EmitReminderEventRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	var event *events.TaskChangeEvent
	if req.Action == domain.ReminderActionDelete {
		event = events.NewDeleteEvent(req.TaskID, req.WorkspaceID)
	} else {
		event = events.NewUpsertEvent(&domain.Task{
			ID:              req.TaskID,
			WorkspaceID:     req.WorkspaceID,
			Title:           req.Title,
			Color:           req.Color,
			StartTime:       req.StartTime,
			ReminderMinutes: req.ReminderMinutes,
		})
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		HandleAPIError(w, r, err, "Failed to emit reminder event")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, EmitReminderEventResponse{
		EventID: event.ID.String(),
		Type:    string(event.Type),
	})
}

// GetJob handles GET /api/reminders/jobs/{taskID}.
func (h *ReminderHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathID(r, "taskID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	view, err := h.service.InspectJob(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}
