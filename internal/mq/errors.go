package mq

import "errors"

// Ошибки RabbitMQ-слоя.
var (
	// ErrNoChannel — канал недоступен (соединение закрыто или переподключается).
	ErrNoChannel = errors.New("amqp channel not available")

	// ErrConnectionClosed — соединение закрыто через Close.
	ErrConnectionClosed = errors.New("amqp connection closed")

	// ErrPermanent — обработчик сообщения не справится и при повторе;
	// сообщение уходит в DLQ без requeue.
	ErrPermanent = errors.New("permanent message failure")
)
