package domain

import "time"

// StatsEvent representa uma decisão do limiter.
//
// O identificador não entra no evento: guardar um contador por usuário/IP
// explode a cardinalidade no backend de estatísticas.
type StatsEvent struct {
	LimitType LimitType
	Limited   bool
	At        time.Time
}

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

type StatsSnapshot struct {
	Total  Counters               `json:"total"`
	ByType map[LimitType]Counters `json:"byType"`
}
