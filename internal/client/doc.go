// Package client реализует HTTP-шлюз к endpoint'ам клиента.
//
// Клиент backbeat — внешний сервис, который принимает решения (decider)
// и выполняет работу (activity). Для каждого пользователя известны три
// endpoint'а:
//
//	POST <decision_endpoint>      {"decision": {...узел...}}
//	POST <activity_endpoint>      {"activity": {...узел...}}
//	POST <notification_endpoint>  {"notification": {...}, "error": {...}}
//
// Успех — любой 2xx. Иначе возвращается *HTTPError с сырым телом ответа,
// который обработчики событий записывают в журнал статусов.
package client
