// Package stats guarda contadores de decisões do rate limiter.
//
// As implementações são best-effort: o serviço registra o erro e segue, o
// veredito nunca depende delas.
package stats
