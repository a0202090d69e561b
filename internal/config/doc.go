// Package config собирает конфигурацию процессов backbeat.
//
// Порядок источников (каждый следующий перекрывает предыдущий):
//  1. значения по умолчанию (Default)
//  2. YAML-файл, путь к которому задан в BACKBEAT_CONFIG
//  3. переменные окружения (DB_URL, RABBITMQ_URL, API_PORT, ...)
//
// Итоговая конфигурация проверяется validator'ом.
package config
