// Package application contém os casos de uso do rate limit e do limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) retorna uma Decision (allow/deny); erros do store
// resultam em allow (fail-open).
package application
