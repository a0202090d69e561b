// Package cli реализует инструмент командной строки backbeat.
//
// # Обзор
//
// CLI — клиентская утилита для операторов и отладки клиентов.
// Работает через HTTP API и не импортирует пакеты ядра.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для backbeat API. Инкапсулирует запросы, разбор
// ответов (DataResponse, ErrorResponse) и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	tree, err := client.GetTree(workflowID)
//
// ## Output
//
// Форматирование вывода:
//   - таблицы (text/tabwriter) по умолчанию
//   - JSON с флагом --json
//   - дерево workflow (lipgloss/tree) с цветом по статусам узлов
//
// Данные выводятся в stdout, сообщения (Success/Error) в stderr,
// поэтому вывод можно передавать в pipe: backbeat node show ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - user: create, show
//   - workflow: create, show, tree, signal, pause, resume, complete
//   - node: show, history, status, reset, retry, deactivate
//
// Каждая группа создаётся фабричной функцией (NewWorkflowCmd и т.д.),
// принимающей clientFn и outputFn: Client и Output создаются лениво,
// после разбора PersistentFlags.
package cli
