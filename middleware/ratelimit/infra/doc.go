// Package infra implementa os ports de domain sobre Redis e memória.
//
//   - RedisCounterStore: contador por janela (script Lua no modo fixed, MULTI no sliding)
//   - RedisStatsStore / MemoryStatsStore / TeeStats: estatísticas das decisões
//   - ChanPool: semáforo para o limite de requisições em andamento
package infra
