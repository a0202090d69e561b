// Package mq — RabbitMQ-транспорт для отложенных вызовов обработчиков.
//
// Вызов, время которого наступило, публикуется в exchange backbeat.events
// с routing key "due" и попадает в очередь events.due, откуда его забирает
// воркер. Сообщения, отклонённые без requeue, уходят в dlq.events.
//
//   - connection.go — соединение с автоматическим reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация DeferredCall
//   - consumer.go   — потребление с ручным ack/nack
package mq
