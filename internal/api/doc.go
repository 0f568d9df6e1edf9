// Package api — submission и status boundary системы.
//
// Два внешних контракта:
//   - POST /orchestrate/{username} — admission control + создание job
//   - GET  /status/{username}/{job_id} — персистентный снимок job
//
// Status-чтения обслуживаются только из Job Store и никогда не
// блокируются на in-flight workflow.
package api
