package www

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/chain"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/config"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/contract"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/engine"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/messaging"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/signer"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/store"
)

var stubHash = common.HexToHash("0x5eed000000000000000000000000000000000000000000000000000000000001")

type stubChain struct {
	mu        sync.Mutex
	raw       [][]byte
	submitErr error
	callRet   []byte
	callErr   error
}

func (s *stubChain) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (s *stubChain) CurrentNonce(context.Context, common.Address) (uint64, error) { return 5, nil }

func (s *stubChain) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(20), nil }

func (s *stubChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 51234, nil
}

func (s *stubChain) SubmitSignedTransaction(_ context.Context, raw []byte) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return common.Hash{}, s.submitErr
	}
	s.raw = append(s.raw, raw)
	return stubHash, nil
}

func (s *stubChain) CallReadOnly(context.Context, common.Address, []byte) ([]byte, error) {
	return s.callRet, s.callErr
}

func (s *stubChain) Ping(context.Context) error { return nil }

func (s *stubChain) Name() string { return "stub" }

func (s *stubChain) submitted() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.raw...)
}

type testEnv struct {
	chain  *stubChain
	abi    abi.ABI
	eng    *engine.Engine
	server *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	parsed, err := contract.LoadABI(filepath.Join("..", "contract", "testdata", "AutomobileSupplyChain.json"))
	if err != nil {
		t.Fatalf("LoadABI: %v", err)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults()
	cfg.Lifecycle.DocumentCID = "QmTestCID"
	cfg.Messaging.Backend = messaging.BackendNone
	cfg.Web.RateLimitRPS = 0
	if mutate != nil {
		mutate(cfg)
	}

	sc := &stubChain{}
	eng, err := engine.New(engine.Config{
		AppConfig: cfg,
		DB:        db,
		Chain:     sc,
		Signer:    signer.New(key),
		Contract:  contract.New(common.HexToAddress("0x00000000000000000000000000000000000000aa"), parsed),
		MsgClient: messaging.NewClient(&cfg.Messaging),
		LogFunc:   t.Logf,
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	eng.Start()
	t.Cleanup(eng.Stop)

	handler, stop := NewRouter(eng)
	t.Cleanup(stop)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{
		chain:  sc,
		abi:    parsed,
		eng:    eng,
		server: srv,
		client: &http.Client{Jar: jar},
	}
}

func (e *testEnv) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := e.client.Post(e.server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return decodeResponse(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return decodeResponse(t, resp)
}

func decodeResponse(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	var m map[string]any
	if len(bytes.TrimSpace(data)) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
	return resp.StatusCode, m
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	code, body := e.post(t, "/login", `{"username":"admin","password":"admin"}`)
	if code != http.StatusOK {
		t.Fatalf("login status = %d, body %v", code, body)
	}
}

func decodeTx(t *testing.T, raw []byte) *types.Transaction {
	t.Helper()
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	return &tx
}

func TestHomeBanner(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := env.client.Get(env.server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "<h2>Automated Supply Payment Backend is Running</h2>" {
		t.Errorf("body = %q", body)
	}
}

func TestCreateOrderExample(t *testing.T) {
	env := newTestEnv(t, nil)
	code, body := env.post(t, "/createOrder",
		`{"supplier":"0xCF10217bf58d9690f4857134eF745048Ad833b6E","amount":1.0,"vin":"VIN123456"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, body)
	}
	if body["status"] != "success" || body["txHash"] != stubHash.Hex() {
		t.Errorf("body = %v", body)
	}

	raws := env.chain.submitted()
	if len(raws) != 1 {
		t.Fatalf("submitted %d transactions, want 1", len(raws))
	}
	tx := decodeTx(t, raws[0])
	if tx.Nonce() != 5 || tx.Value().Sign() != 0 || tx.GasPrice().Int64() != 20 || tx.Gas() != 300000 {
		t.Errorf("tx = nonce %d value %s price %s gas %d", tx.Nonce(), tx.Value(), tx.GasPrice(), tx.Gas())
	}
	amount, _ := new(big.Int).SetString("1000000000000000000", 10)
	want, err := env.abi.Pack("createOrder",
		common.HexToAddress("0xCF10217bf58d9690f4857134eF745048Ad833b6E"), amount, "VIN123456", "ipfs://QmTestCID")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(tx.Data(), want) {
		t.Error("call data does not match createOrder encoding")
	}
}

func TestCreateOrderAmountAsString(t *testing.T) {
	env := newTestEnv(t, nil)
	code, body := env.post(t, "/createOrder",
		`{"supplier":"0xCF10217bf58d9690f4857134eF745048Ad833b6E","amount":"2.5","vin":"VIN1"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, body)
	}
}

func TestMissingFieldsReturn400(t *testing.T) {
	env := newTestEnv(t, nil)
	cases := []struct{ path, body string }{
		{"/createOrder", `{"supplier":"0xCF10217bf58d9690f4857134eF745048Ad833b6E","vin":"VIN1"}`},
		{"/createOrder", ``},
		{"/depositFunds", `{"orderId":1}`},
		{"/markShipped", `{}`},
		{"/confirmDelivery", `{"orderId":null}`},
	}
	for _, c := range cases {
		code, body := env.post(t, c.path, c.body)
		if code != http.StatusBadRequest {
			t.Errorf("%s %s: status = %d, want 400", c.path, c.body, code)
		}
		if body["error"] != "Missing required fields" {
			t.Errorf("%s %s: error = %v", c.path, c.body, body["error"])
		}
	}
	if n := len(env.chain.submitted()); n != 0 {
		t.Errorf("submitted %d transactions, want 0", n)
	}
}

func TestMalformedRequestsReturn400(t *testing.T) {
	env := newTestEnv(t, nil)
	cases := []struct{ path, body string }{
		{"/createOrder", `{not json`},
		{"/createOrder", `{"supplier":"nope","amount":1,"vin":"V"}`},
		{"/createOrder", `{"supplier":"0xCF10217bf58d9690f4857134eF745048Ad833b6E","amount":"abc","vin":"V"}`},
		{"/markShipped", `{"orderId":true}`},
		{"/markShipped", `{"orderId":"-3"}`},
	}
	for _, c := range cases {
		code, body := env.post(t, c.path, c.body)
		if code != http.StatusBadRequest {
			t.Errorf("%s %s: status = %d, want 400", c.path, c.body, code)
		}
		if _, ok := body["error"]; !ok {
			t.Errorf("%s %s: no error field in %v", c.path, c.body, body)
		}
	}
}

func TestDepositFundsAttachesConfiguredValue(t *testing.T) {
	env := newTestEnv(t, nil)
	code, _ := env.post(t, "/depositFunds", `{"orderId":1,"amount":3}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	tx := decodeTx(t, env.chain.submitted()[0])
	if tx.Value().String() != "500000000000000000" {
		t.Errorf("value = %s, want 0.5 ether", tx.Value())
	}
	if tx.GasPrice().String() != "5000000000" || tx.Gas() != 51234 {
		t.Errorf("gas = %d at %s", tx.Gas(), tx.GasPrice())
	}
}

func TestChainRejectionReturns500(t *testing.T) {
	env := newTestEnv(t, nil)
	env.chain.submitErr = &chain.Fault{Op: "eth_sendRawTransaction", Kind: chain.KindRejected,
		Err: errors.New("execution reverted: Only supplier can mark shipped")}
	code, body := env.post(t, "/markShipped", `{"orderId":"4"}`)
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if body["error"] != "execution reverted: Only supplier can mark shipped" {
		t.Errorf("error = %v", body["error"])
	}
	if _, ok := body["txHash"]; ok {
		t.Error("rejected submission should not carry a txHash")
	}
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	buyer := common.HexToAddress("0x1111111111111111111111111111111111111111")
	supplier := common.HexToAddress("0xCF10217bf58d9690f4857134eF745048Ad833b6E")
	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	ret, err := env.abi.Methods["orders"].Outputs.Pack(big.NewInt(3), buyer, supplier, amount, uint8(1), "VIN123456", "ipfs://QmTestCID")
	if err != nil {
		t.Fatal(err)
	}
	env.chain.callRet = ret

	code, body := env.get(t, "/getOrder/3")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, body)
	}
	if body["orderId"] != float64(3) || body["amount"] != 1.5 || body["state"] != float64(1) {
		t.Errorf("body = %v", body)
	}
	if body["buyer"] != buyer.Hex() || body["supplier"] != supplier.Hex() {
		t.Errorf("parties = %v, %v", body["buyer"], body["supplier"])
	}
	if body["vin"] != "VIN123456" || body["isoTs16949Doc"] != "ipfs://QmTestCID" {
		t.Errorf("strings = %v, %v", body["vin"], body["isoTs16949Doc"])
	}
}

func TestGetOrderErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	if code, _ := env.get(t, "/getOrder/abc"); code != http.StatusNotFound {
		t.Errorf("non-numeric id status = %d, want 404", code)
	}

	env.chain.callErr = &chain.Fault{Op: "eth_call", Kind: chain.KindConnectivity, Err: errors.New("connection refused")}
	code, body := env.get(t, "/getOrder/1")
	if code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
	if body["error"] != "connection refused" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestOperatorRoutesRequireLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, p := range []string{"/api/transactions", "/api/audit", "/api/transactions/nope"} {
		if code, _ := env.get(t, p); code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", p, code)
		}
	}

	if code, _ := env.post(t, "/login", `{"username":"admin","password":"wrong"}`); code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", code)
	}
}

func TestTransactionJournalAPI(t *testing.T) {
	env := newTestEnv(t, nil)
	if code, _ := env.post(t, "/markShipped", `{"orderId":8}`); code != http.StatusOK {
		t.Fatalf("markShipped status = %d", code)
	}
	env.login(t)

	resp, err := env.client.Get(env.server.URL + "/api/transactions?transition=markShipped")
	if err != nil {
		t.Fatal(err)
	}
	var txs []store.Transaction
	json.NewDecoder(resp.Body).Decode(&txs)
	resp.Body.Close()
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].OrderID != "8" || txs[0].TxHash != stubHash.Hex() || txs[0].Status != store.TxStatusSubmitted {
		t.Errorf("transaction = %+v", txs[0])
	}

	code, body := env.get(t, "/api/transactions/"+txs[0].Ref)
	if code != http.StatusOK || body["ref"] != txs[0].Ref {
		t.Errorf("by ref: status %d body %v", code, body)
	}
	if code, _ := env.get(t, "/api/transactions/missing-ref"); code != http.StatusNotFound {
		t.Errorf("missing ref status = %d, want 404", code)
	}
	if code, _ := env.get(t, "/api/transactions?transition=bogus"); code != http.StatusBadRequest {
		t.Errorf("bogus transition status = %d, want 400", code)
	}
	if code, _ := env.get(t, "/api/audit"); code != http.StatusOK {
		t.Errorf("audit status = %d", code)
	}
	code, body = env.get(t, "/api/me")
	if code != http.StatusOK || body["username"] != "admin" || body["last_login_at"] == nil {
		t.Errorf("me: status %d body %v", code, body)
	}
	if _, ok := body["PasswordHash"]; ok {
		t.Error("password hash must not be serialized")
	}

	if code, _ := env.post(t, "/logout", ``); code != http.StatusOK {
		t.Errorf("logout status = %d", code)
	}
	if code, _ := env.get(t, "/api/audit"); code != http.StatusUnauthorized {
		t.Errorf("after logout status = %d, want 401", code)
	}
}

func TestWriteEndpointsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Web.RateLimitRPS = 0.001
		c.Web.RateLimitBurst = 1
	})
	if code, _ := env.post(t, "/markShipped", `{"orderId":1}`); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	code, body := env.post(t, "/markShipped", `{"orderId":1}`)
	if code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", code)
	}
	if body["error"] != "rate limit exceeded" {
		t.Errorf("error = %v", body["error"])
	}
	// reads are not limited
	env.chain.callErr = errors.New("boom")
	if code, _ := env.get(t, "/getOrder/1"); code == http.StatusTooManyRequests {
		t.Error("getOrder should not be rate limited")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	code, body := env.get(t, "/api/health")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" || body["chain_id"] != "1" || body["messaging"] != "none" {
		t.Errorf("body = %v", body)
	}
	if body["signer"] != env.eng.Signer().Address().Hex() {
		t.Errorf("signer = %v", body["signer"])
	}
}

func TestNumberText(t *testing.T) {
	cases := map[string]string{`1.0`: "1.0", `"2.5"`: "2.5", `null`: "", `""`: "", `"abc"`: "abc"}
	for in, want := range cases {
		var n numberText
		if err := json.Unmarshal([]byte(in), &n); err != nil {
			t.Errorf("%s: %v", in, err)
			continue
		}
		if string(n) != want {
			t.Errorf("%s = %q, want %q", in, n, want)
		}
	}
	for _, in := range []string{`true`, `{}`, `[1]`} {
		var n numberText
		if err := json.Unmarshal([]byte(in), &n); err == nil {
			t.Errorf("%s: expected error", in)
		}
	}
}

func TestRateLimiterEviction(t *testing.T) {
	l := newIPRateLimiter(1, 1)
	defer l.Stop()
	l.allow("10.0.0.1")
	l.evictIdle(l.clients["10.0.0.1"].lastSeen.Add(limiterIdle + 1))
	if len(l.clients) != 0 {
		t.Errorf("clients = %d, want 0 after eviction", len(l.clients))
	}
}

func TestEventHubRelaysTransactions(t *testing.T) {
	env := newTestEnv(t, nil)
	h := NewEventHub()
	h.Start()
	defer h.Stop()
	h.SetupEngineListeners(env.eng)
	ch := h.AddClient()
	defer h.RemoveClient(ch)

	if code, _ := env.post(t, "/markShipped", `{"orderId":2}`); code != http.StatusOK {
		t.Fatalf("markShipped status = %d", code)
	}

	select {
	case evt := <-ch:
		if evt.Event != "transaction-update" {
			t.Fatalf("event = %q", evt.Event)
		}
		var u txUpdate
		if err := json.Unmarshal([]byte(evt.Data), &u); err != nil {
			t.Fatal(err)
		}
		if u.Type != "submitted" || u.OrderID != "2" || u.TxHash != stubHash.Hex() {
			t.Errorf("update = %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestDefaultSecretInUse(t *testing.T) {
	for _, s := range []string{"", "  ", defaultSessionSecret, config.DefaultSessionSecret} {
		if !defaultSecretInUse(s) {
			t.Errorf("defaultSecretInUse(%q) = false, want true", s)
		}
	}
	if defaultSecretInUse("a-real-deployment-secret") {
		t.Error("configured secret reported as default")
	}
}
