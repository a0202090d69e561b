// Package api содержит HTTP API сервера backbeat.
//
// Структура:
//   - handler.go          — Handler с DI (orchestrator, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery, metrics)
//   - response.go         — унифицированные JSON-ответы и отображение ошибок ядра
//   - dto.go              — тела запросов
//   - user_handler.go     — обработчики для /users
//   - workflow_handler.go — обработчики для /workflows
//   - node_handler.go     — обработчики для /nodes
//
// API — тонкий слой над orchestrator: клиенты регистрируются, создают
// workflow, присылают сигналы, решения и статусы узлов.
package api
