package store

import (
	"fmt"
	"time"
)

// Journal statuses.
const (
	TxStatusSubmitted = "submitted"
	TxStatusFailed    = "failed"
)

// Transaction is one attempted write transition. Wei amounts are kept as
// decimal strings since they overflow int64.
type Transaction struct {
	ID          int64     `json:"id"`
	Ref         string    `json:"ref"`
	Transition  string    `json:"transition"`
	OrderID     string    `json:"order_id,omitempty"`
	Status      string    `json:"status"`
	TxHash      string    `json:"tx_hash,omitempty"`
	From        string    `json:"from,omitempty"`
	Nonce       uint64    `json:"nonce"`
	GasLimit    uint64    `json:"gas_limit"`
	GasPrice    string    `json:"gas_price_wei"`
	ValueWei    string    `json:"value_wei"`
	Stage       string    `json:"stage,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const txColumns = `id, ref, transition, order_id, status, tx_hash, from_address, nonce, gas_limit, gas_price, value_wei, stage, error_detail, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (*Transaction, error) {
	var t Transaction
	var nonce, gasLimit int64
	var createdAt any
	err := row.Scan(&t.ID, &t.Ref, &t.Transition, &t.OrderID, &t.Status, &t.TxHash, &t.From,
		&nonce, &gasLimit, &t.GasPrice, &t.ValueWei, &t.Stage, &t.ErrorDetail, &createdAt)
	if err != nil {
		return nil, err
	}
	t.Nonce = uint64(nonce)
	t.GasLimit = uint64(gasLimit)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

// RecordTransaction appends t to the journal and assigns its ID.
func (db *DB) RecordTransaction(t *Transaction) error {
	if t.GasPrice == "" {
		t.GasPrice = "0"
	}
	if t.ValueWei == "" {
		t.ValueWei = "0"
	}
	id, err := db.insertID(`INSERT INTO transactions (ref, transition, order_id, status, tx_hash, from_address, nonce, gas_limit, gas_price, value_wei, stage, error_detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Ref, t.Transition, t.OrderID, t.Status, t.TxHash, t.From,
		int64(t.Nonce), int64(t.GasLimit), t.GasPrice, t.ValueWei, t.Stage, t.ErrorDetail)
	if err != nil {
		return fmt.Errorf("record transaction %s: %w", t.Ref, err)
	}
	t.ID = id
	return nil
}

func (db *DB) GetTransactionByRef(ref string) (*Transaction, error) {
	row := db.QueryRow(db.Q(`SELECT `+txColumns+` FROM transactions WHERE ref=?`), ref)
	return scanTransaction(row)
}

// ListTransactions returns the newest entries first, optionally filtered by transition.
func (db *DB) ListTransactions(transition string, limit int) ([]*Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions`
	var args []any
	if transition != "" {
		query += ` WHERE transition=?`
		args = append(args, transition)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(db.Q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListOrderTransactions returns every journal entry for an on-chain order id, oldest first.
func (db *DB) ListOrderTransactions(orderID string) ([]*Transaction, error) {
	rows, err := db.Query(db.Q(`SELECT `+txColumns+` FROM transactions WHERE order_id=? ORDER BY id`), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
