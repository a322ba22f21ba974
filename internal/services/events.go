package services

import (
	log "github.com/sirupsen/logrus"
)

// Catalog event names published on the message queue.
const (
	EventProductCreated = "producto.creado"
	EventProductUpdated = "producto.actualizado"
	EventProductDeleted = "producto.eliminado"
	EventUserRegistered = "usuario.registrado"
)

// EventPublisher delivers domain events to interested consumers.
type EventPublisher interface {
	Publish(event string, payload interface{}) error
}

// publish sends an event if a publisher is configured. Delivery failures are
// logged and never fail the request that caused them.
func publish(p EventPublisher, event string, payload interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(event, payload); err != nil {
		log.WithError(err).WithField("event", event).Warn("failed to publish event")
	}
}
