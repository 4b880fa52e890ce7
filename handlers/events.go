package handlers

import (
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/utils"
)

const (
	EventAlerteCreated  = "created"
	EventAlerteResolved = "resolved"
	EventAlerteDeleted  = "deleted"
)

// AlerteBroadcaster pushes alert events to connected clients.
type AlerteBroadcaster interface {
	BroadcastAlerte(ev models.AlerteEvent)
}

// AlerteMailer notifies the QA team by email.
type AlerteMailer interface {
	SendAlerteNotification(to string, a models.Alerte) error
}

// AlerteEvents fans alert lifecycle events out to the websocket hub and, for
// new alerts, to the notification mailbox. A nil *AlerteEvents is a no-op.
type AlerteEvents struct {
	hub      AlerteBroadcaster
	mailer   AlerteMailer
	notifyTo string
	async    bool
}

func NewAlerteEvents(hub AlerteBroadcaster, mailer AlerteMailer, notifyTo string) *AlerteEvents {
	return &AlerteEvents{hub: hub, mailer: mailer, notifyTo: notifyTo, async: true}
}

func (e *AlerteEvents) Publish(eventType string, a models.Alerte) {
	if e == nil {
		return
	}
	if e.hub != nil {
		e.hub.BroadcastAlerte(models.AlerteEvent{Type: eventType, Alerte: a})
	}
	if eventType != EventAlerteCreated || e.mailer == nil || e.notifyTo == "" {
		return
	}

	send := func() {
		if err := e.mailer.SendAlerteNotification(e.notifyTo, a); err != nil {
			utils.SafeError("❌ Alerte notification failed for %s: %v", a.ID, err)
		}
	}
	if e.async {
		go send()
		return
	}
	send()
}
