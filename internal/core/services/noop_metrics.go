package services

import "github.com/hellodits/dee-POS-sub002/internal/core/domain"

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

func (NoopMetrics) ConnectionOpened(domain.IdentityKind) {}
func (NoopMetrics) ConnectionClosed(domain.IdentityKind) {}
func (NoopMetrics) RoomJoined(domain.RoomID)             {}
func (NoopMetrics) EventPublished(domain.EventKind)      {}
func (NoopMetrics) Delivery(string)                      {}
func (NoopMetrics) PublishRejected(string)               {}
