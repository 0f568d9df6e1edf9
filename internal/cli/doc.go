// Package cli реализует команды CLI-инструмента cascade.
//
// CLI общается с системой только через HTTP API и не импортирует
// внутренние пакеты сервера. Типы ответов дублируются локально.
package cli
