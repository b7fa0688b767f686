// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Camadas:
//
//   - domain: regra, chave, contratos dos stores (sem net/http)
//   - application: decisão allow/deny com fail-open, acquire com timeout
//   - infra: contador de janela fixa no Redis, estatísticas, semáforo
//   - ratelimit (este pacote): middlewares HTTP, extração de chave, resposta 429/503
//
// Fluxo por requisição:
//
//  1. Rate limit desligado ou caminho isento (/health, /metrics): repassa
//  2. Extrai a chave do cliente (endereço de origem, "unknown" sem endereço)
//  3. Incrementa o contador compartilhado <prefix>rate:<cliente>
//  4. Acima do limite: 429 {"detail": "Rate limit exceeded. Please try again later."}
//  5. Dentro do limite ou store indisponível: chama o próximo handler
//
// O contador vive no Redis para que várias instâncias do serviço dividam a mesma quota.
package ratelimit
