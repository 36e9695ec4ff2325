package handlers

import (
	"context"
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/i18n"
	"github.com/groupkeeper-tgbot-go/internal/middleware"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/customization"
	"github.com/groupkeeper-tgbot-go/internal/services/moderation"
	"github.com/groupkeeper-tgbot-go/internal/services/progression"
	"github.com/groupkeeper-tgbot-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

// EventRecorder receives dispatcher metrics; middleware.Metrics implements it.
type EventRecorder interface {
	RecordEventReceived(kind string)
	RecordEventProcessed(kind, status string, duration time.Duration)
	RecordCommandExecuted(command string)
}

type noopRecorder struct{}

func (noopRecorder) RecordEventReceived(string)                         {}
func (noopRecorder) RecordEventProcessed(string, string, time.Duration) {}
func (noopRecorder) RecordCommandExecuted(string)                       {}

// Dispatcher routes chat events to the services and builds the reply.
type Dispatcher struct {
	custom      *customization.Service
	progression *progression.Service
	moderation  *moderation.Service
	flood       middleware.FloodLimiter
	localizer   *i18n.Localizer
	recorder    EventRecorder
	logger      *logrus.Logger
	now         func() time.Time
}

// NewDispatcher creates a dispatcher
func NewDispatcher(
	custom *customization.Service,
	progressionService *progression.Service,
	moderationService *moderation.Service,
	flood middleware.FloodLimiter,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *Dispatcher {
	return &Dispatcher{
		custom:      custom,
		progression: progressionService,
		moderation:  moderationService,
		flood:       flood,
		localizer:   localizer,
		recorder:    noopRecorder{},
		logger:      logger,
		now:         time.Now,
	}
}

// SetRecorder installs a metrics sink.
func (d *Dispatcher) SetRecorder(r EventRecorder) {
	if r == nil {
		r = noopRecorder{}
	}
	d.recorder = r
}

// request carries per-event state through the handlers.
type request struct {
	ev   models.Event
	lang string
	log  *logrus.Entry
}

func (r *request) name() string {
	return html.EscapeString(displayName(r.ev.DisplayName, r.ev.Username))
}

func displayName(name, username string) string {
	if name != "" {
		return name
	}
	if username != "" {
		return "@" + username
	}
	return "User"
}

func (d *Dispatcher) t(r *request, id string, data map[string]interface{}) string {
	return d.localizer.Get(r.lang, id, data)
}

// Handle processes one event. Validation problems become a localized reply
// and a nil error. Any other failure is logged and returned; for commands
// and callbacks the response then still carries a localized error reply.
func (d *Dispatcher) Handle(ctx context.Context, ev models.Event) (resp models.Response, err error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = d.now()
	}
	start := time.Now()
	kind := string(ev.Kind)
	d.recorder.RecordEventReceived(kind)

	r := &request{ev: ev, log: logger.WithEvent(d.logger, ev)}
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		d.recorder.RecordEventProcessed(kind, status, time.Since(start))
	}()

	user, err := d.custom.TouchUser(ctx, ev.UserID, ev.Username, ev.DisplayName)
	if err != nil {
		return d.fail(r, err)
	}
	r.lang = user.Language

	if ev.ChatTitle != "" {
		if err := d.custom.SetChatTitle(ctx, ev.ChatID, ev.ChatTitle); err != nil {
			return d.fail(r, err)
		}
	}

	switch ev.Kind {
	case models.EventMessage:
		resp, err = d.handleMessage(ctx, r)
	case models.EventCommand:
		resp, err = d.handleCommand(ctx, r)
	case models.EventCallback:
		resp, err = d.handleCallback(ctx, r)
	case models.EventMemberJoined:
		resp, err = d.handleMemberJoined(ctx, r)
	case models.EventMemberLeft:
		resp, err = d.handleMemberLeft(ctx, r)
	default:
		r.log.Debug("Ignoring unknown event kind")
		return models.Response{}, nil
	}

	if err == nil {
		return resp, nil
	}
	if ve, ok := apperrors.IsValidation(err); ok {
		var out models.Response
		out.ReplyHTML(d.t(r, i18n.MsgInvalid, map[string]interface{}{
			"Field":  html.EscapeString(ve.Field),
			"Reason": html.EscapeString(ve.Reason),
		}), nil)
		if ev.Kind == models.EventCallback {
			out.AnswerCallback = ve.Error()
		}
		return out, nil
	}
	return d.fail(r, err)
}

// fail logs err and returns the user-facing error reply. Plain messages and
// member events fail silently.
func (d *Dispatcher) fail(r *request, err error) (models.Response, error) {
	entry := r.log.WithError(err)
	switch {
	case apperrors.IsCorrupt(err):
		entry.Error("Stored document is corrupt, operator action needed")
	default:
		entry.Error("Failed to handle event")
	}

	var resp models.Response
	switch r.ev.Kind {
	case models.EventCommand:
		resp.Reply(d.t(r, i18n.MsgError, nil))
	case models.EventCallback:
		resp.AnswerCallback = d.t(r, i18n.MsgError, nil)
	}
	return resp, err
}
