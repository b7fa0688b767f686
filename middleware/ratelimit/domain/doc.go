// Package domain reúne os tipos do rate limit (regra, chave, decisão) e os
// ports que a infraestrutura implementa: CounterStore, StatsStore e SlotPool.
// Nada aqui importa net/http ou Redis.
package domain
