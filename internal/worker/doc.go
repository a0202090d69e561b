// Package worker выполняет отложенные вызовы обработчиков событий.
//
// # Обзор
//
// Обработчик, запланированный через ScheduleNow, ScheduleAt или
// ScheduleRetry, становится отложенным вызовом (domain.DeferredCall).
// Когда его время наступает, вызов приходит воркеру одним из двух путей:
//
//   - из очереди RabbitMQ events.due (публикует queue.Durable или scheduler.Relay)
//   - из таблицы deferred_calls (polling fallback, если брокер недоступен);
//     строка берётся в аренду и удаляется только после выполнения
//
// Worker восстанавливает обработчик по имени через events.Registry,
// заново загружает узел и выполняет обработчик через Dispatcher со
// стратегией PerformEvent. Деактивированный за время ожидания узел
// вызов не получает.
//
//	w := worker.New(worker.Config{
//	    Store:      store,
//	    Dispatcher: dispatcher,
//	    Conn:       mqConn,
//	    Logger:     logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Подтверждение сообщений
//
//   - успех, устаревший вызов, исчезнувший узел — ack
//   - неизвестный обработчик, битый payload — nack в dlq.events
//   - прочие ошибки — nack с возвратом в очередь
package worker
