// Package queue — надёжная очередь отложенных вызовов обработчиков.
//
// Durable публикует вызов в RabbitMQ, если его время наступило и он
// поставлен вне транзакции, и иначе сохраняет в таблицу deferred_calls,
// откуда его позже забирает scheduler.Relay. Memory держит вызовы в памяти процесса и выполняет их
// по команде Drain.
//
// Доставка at-least-once: обработчики идемпотентны за счёт
// compare-and-swap в state.Manager.
package queue
