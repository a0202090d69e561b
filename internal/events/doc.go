// Package events реализует обработчики событий над узлами, стратегии
// планирования и единую точку диспетчеризации.
//
// Каждый обработчик описывает один шаг оркестрации (запуск узла,
// завершение клиента, повтор, деактивация) и объявляет стратегию
// планирования по умолчанию:
//
//	PerformEvent  — выполнить сразу, в текущем вызове
//	ScheduleNow   — поставить в очередь на сейчас
//	ScheduleAt    — поставить в очередь на node.FiresAt
//	ScheduleRetry — поставить в очередь с экспоненциальной задержкой
//
// Все каскады обработчиков идут через Dispatcher.FireEvent, который
// отбрасывает события для деактивированных узлов.
//
// Структура:
//   - handler.go    — интерфейс Handler и внешние зависимости
//   - dispatcher.go — Dispatcher, FireEvent
//   - schedulers.go — стратегии планирования
//   - handlers.go   — обработчики событий
//   - registry.go   — неизменяемый реестр обработчиков по имени
package events
