// Package state управляет двумя измерениями статуса узла.
//
// Manager проверяет переход по графу, атомарно применяет его через
// compare-and-swap по наблюдённым статусам и пишет журнал изменений
// в той же транзакции.
//
// Структура:
//   - graph.go   — допустимые переходы серверного и клиентского статусов
//   - manager.go — Transition, Force, WithRollback
//   - errors.go  — ошибки некорректного и устаревшего перехода
//
// Корень workflow не имеет двух измерений статуса: все операции
// Manager над ним ничего не делают.
package state
