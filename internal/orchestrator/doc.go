// Package orchestrator — входная точка для внешних стимулов.
//
// Orchestrator принимает то, что приходит снаружи (HTTP API, CLI,
// тесты), и превращает это в события ядра:
//   - создание пользователя и workflow (find-or-create по subject/decider)
//   - сигнал: новый узел верхнего уровня и ScheduleNextNode на корне
//   - решения клиента: добавление детей к узлу в processing
//   - обновление статуса клиентом: processing / completed / errored / deactivated
//   - пауза, возобновление и завершение workflow
//   - действия оператора: reset, retry, deactivate
//
// Сам Orchestrator статусы не меняет в обход state.Manager: всё идёт
// через events.Dispatcher.
package orchestrator
