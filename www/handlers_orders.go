package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/lifecycle"
)

// Request bodies. Numeric fields accept a JSON number or a string
// and keep the caller's exact text.
type createOrderBody struct {
	Supplier string     `json:"supplier"`
	Amount   numberText `json:"amount"`
	VIN      string     `json:"vin"`
}

type depositFundsBody struct {
	OrderID numberText `json:"orderId"`
	Amount  numberText `json:"amount"`
}

type orderIDBody struct {
	OrderID numberText `json:"orderId"`
}

type submitResponse struct {
	Status string `json:"status"`
	TxHash string `json:"txHash"`
}

func (h *Handlers) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var body createOrderBody
	if err := decodeBody(w, r, &body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	h.submit(w, r, lifecycle.CreateOrder{
		Supplier: body.Supplier,
		Amount:   string(body.Amount),
		VIN:      body.VIN,
	})
}

func (h *Handlers) handleDepositFunds(w http.ResponseWriter, r *http.Request) {
	var body depositFundsBody
	if err := decodeBody(w, r, &body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	h.submit(w, r, lifecycle.DepositFunds{
		OrderID: string(body.OrderID),
		Amount:  string(body.Amount),
	})
}

func (h *Handlers) handleMarkShipped(w http.ResponseWriter, r *http.Request) {
	var body orderIDBody
	if err := decodeBody(w, r, &body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	h.submit(w, r, lifecycle.MarkShipped{OrderID: string(body.OrderID)})
}

func (h *Handlers) handleConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	var body orderIDBody
	if err := decodeBody(w, r, &body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	h.submit(w, r, lifecycle.ConfirmDelivery{OrderID: string(body.OrderID)})
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request, req lifecycle.Request) {
	out, err := h.engine.Lifecycle().Submit(r.Context(), req)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	jsonOK(w, submitResponse{Status: "success", TxHash: out.TxHash.Hex()})
}

func (h *Handlers) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine.Lifecycle().GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	jsonOK(w, order)
}
