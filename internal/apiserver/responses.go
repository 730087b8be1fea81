package apiserver

import (
	"encoding/json"

	"github.com/rishav/rinha-ledger/internal/wire"
)

// extratoResponse is the GET /clientes/{id}/extrato body.
type extratoResponse struct {
	Saldo             saldoDetail       `json:"saldo"`
	UltimasTransacoes []transacaoDetail `json:"ultimas_transacoes"`
}

type saldoDetail struct {
	Total       int32  `json:"total"`
	DataExtrato string `json:"data_extrato"`
	Limite      int32  `json:"limite"`
}

type transacaoDetail struct {
	Valor       int32  `json:"valor"`
	Tipo        string `json:"tipo"`
	Descricao   string `json:"descricao"`
	RealizadaEm string `json:"realizada_em"`
}

// transacaoResponse is the POST /clientes/{id}/transacoes success body.
type transacaoResponse struct {
	Limite int32 `json:"limite"`
	Saldo  int32 `json:"saldo"`
}

// BuildExtratoBody renders a Customer into the extrato JSON shape,
// newest-first per §4.7's ordering algorithm (internal/ledger owns the
// actual ordering; this just serializes whatever order it's handed).
func BuildExtratoBody(c wire.Customer, ordered []wire.Transaction, now string) ([]byte, error) {
	resp := extratoResponse{
		Saldo: saldoDetail{
			Total:       c.Total,
			DataExtrato: now,
			Limite:      c.Limit,
		},
		UltimasTransacoes: make([]transacaoDetail, 0, len(ordered)),
	}
	for _, t := range ordered {
		resp.UltimasTransacoes = append(resp.UltimasTransacoes, transacaoDetail{
			Valor:       t.Valor,
			Tipo:        string(t.Tipo),
			Descricao:   t.DescricaoString(),
			RealizadaEm: t.RealizadaEmString(),
		})
	}
	return json.Marshal(resp)
}

// BuildTransacaoBody renders the POST success body.
func BuildTransacaoBody(c wire.Customer) ([]byte, error) {
	return json.Marshal(transacaoResponse{Limite: c.Limit, Saldo: c.Total})
}
