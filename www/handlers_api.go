package www

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/lifecycle"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/messaging"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/store"
)

type healthResponse struct {
	Status         string `json:"status"`
	Chain          string `json:"chain"`
	ChainConnected bool   `json:"chain_connected"`
	ChainID        string `json:"chain_id,omitempty"`
	Signer         string `json:"signer"`
	Contract       string `json:"contract"`
	Messaging      string `json:"messaging"`
	MsgConnected   bool   `json:"messaging_connected"`
	PendingOutbox  int    `json:"pending_outbox"`
	SSEClients     int    `json:"sse_clients"`
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	eng := h.engine
	resp := healthResponse{
		Status:         "ok",
		Chain:          eng.Chain().Name(),
		ChainConnected: eng.ChainConnected(),
		Signer:         eng.Lifecycle().Account(),
		Contract:       eng.AppConfig().Chain.ContractAddress,
		Messaging:      eng.MsgClient().Backend(),
		MsgConnected:   eng.MessagingConnected(),
		SSEClients:     h.eventHub.ClientCount(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if id, err := eng.Chain().ChainID(ctx); err == nil {
		resp.ChainID = id.String()
	}
	if n, err := eng.DB().CountPendingOutbox(); err == nil {
		resp.PendingOutbox = n
	}

	if !resp.ChainConnected {
		resp.Status = "degraded"
	}
	if resp.Messaging != messaging.BackendNone && !resp.MsgConnected {
		resp.Status = "degraded"
	}
	jsonOK(w, resp)
}

func (h *Handlers) apiListTransactions(w http.ResponseWriter, r *http.Request) {
	transition := r.URL.Query().Get("transition")
	if transition != "" && !lifecycle.Transition(transition).Valid() {
		jsonError(w, "unknown transition "+transition, http.StatusBadRequest)
		return
	}
	txs, err := h.engine.DB().ListTransactions(transition, queryLimit(r, 50, 500))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []*store.Transaction{}
	}
	jsonOK(w, txs)
}

func (h *Handlers) apiGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.engine.DB().GetTransactionByRef(chi.URLParam(r, "ref"))
	if errors.Is(err, sql.ErrNoRows) {
		jsonError(w, "transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonOK(w, tx)
}

func (h *Handlers) apiOrderTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.engine.DB().ListOrderTransactions(chi.URLParam(r, "orderId"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []*store.Transaction{}
	}
	jsonOK(w, txs)
}

func (h *Handlers) apiListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.DB().ListAuditLog(queryLimit(r, 100, 1000))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*store.AuditEntry{}
	}
	jsonOK(w, entries)
}
