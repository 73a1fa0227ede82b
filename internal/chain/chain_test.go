package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestSelectors(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"balanceOf", SelectorBalanceOf, "70a08231"},
		{"allowance", SelectorAllowance, "dd62ed3e"},
		{"totalSupply", SelectorTotalSupply, "18160ddd"},
	}
	for _, tt := range tests {
		if got := hex.EncodeToString(tt.got); got != tt.want {
			t.Errorf("%s selector = %s, want %s", tt.name, got, tt.want)
		}
	}
	if len(SelectorGetBassets) != 4 {
		t.Errorf("getBassets selector length = %d, want 4", len(SelectorGetBassets))
	}
}

func TestEncodeAllowance(t *testing.T) {
	data := EncodeAllowance("0x00000000000000000000000000000000000000AA", "0xbb")
	if len(data) != 4+64 {
		t.Fatalf("calldata length = %d, want 68", len(data))
	}
	if data[4+31] != 0xaa || data[4+63] != 0xbb {
		t.Errorf("addresses not right-aligned: %x", data)
	}
}

func uintWord(n int64) []byte {
	w := make([]byte, 32)
	big.NewInt(n).FillBytes(w)
	return w
}

func addrWord(b byte) []byte {
	w := make([]byte, 32)
	w[31] = b
	return w
}

// encodeGetBassets builds a getBassets() return value for the given vault balances.
func encodeGetBassets(vaults ...int64) []byte {
	n := int64(len(vaults))
	var out []byte
	out = append(out, uintWord(64)...)
	out = append(out, uintWord(64+32+n*4*32)...)

	out = append(out, uintWord(n)...)
	for i := range vaults {
		out = append(out, addrWord(byte(0xa0+i))...)
		out = append(out, addrWord(0x01)...)
		out = append(out, uintWord(int64(i%2))...)
		out = append(out, uintWord(1)...)
	}

	out = append(out, uintWord(n)...)
	for _, v := range vaults {
		out = append(out, uintWord(100_000_000)...)
		out = append(out, uintWord(v)...)
	}
	return out
}

func TestDecodeGetBassets(t *testing.T) {
	personal, data, err := DecodeGetBassets(encodeGetBassets(1000, 2500))
	if err != nil {
		t.Fatalf("DecodeGetBassets() error = %v", err)
	}
	if len(personal) != 2 || len(data) != 2 {
		t.Fatalf("decoded %d personal, %d data; want 2, 2", len(personal), len(data))
	}
	if personal[1].Addr != "0x00000000000000000000000000000000000000a1" {
		t.Errorf("addr = %s", personal[1].Addr)
	}
	if !personal[1].HasTxFee || personal[0].HasTxFee {
		t.Error("hasTxFee decoded incorrectly")
	}
	if personal[0].Status != 1 {
		t.Errorf("status = %d, want 1", personal[0].Status)
	}
	if data[1].VaultBalance.Int64() != 2500 || data[0].Ratio.Int64() != 100_000_000 {
		t.Errorf("data = %+v", data)
	}
}

func TestDecodeGetBassetsTruncated(t *testing.T) {
	full := encodeGetBassets(1000, 2500)
	if _, _, err := DecodeGetBassets(full[:len(full)-32]); !errors.Is(err, ErrShortResult) {
		t.Errorf("error = %v, want ErrShortResult", err)
	}
	if _, _, err := DecodeGetBassets(nil); err == nil {
		t.Error("expected error for empty result")
	}
}

func TestDecodeUint256(t *testing.T) {
	got, err := DecodeUint256(uintWord(42))
	if err != nil || got.Int64() != 42 {
		t.Errorf("DecodeUint256() = %v, %v; want 42", got, err)
	}
}

func TestRPCClientFallback(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	var gotReq callEnvelope
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x000000000000000000000000000000000000000000000000000000000000002a"}`))
	}))
	defer ok.Close()

	client := NewRPCClient([]string{failing.URL, " ", ok.URL})
	data, err := client.EthCall(context.Background(), "0xtoken", EncodeBalanceOf("0xaa"))
	if err != nil {
		t.Fatalf("EthCall() error = %v", err)
	}
	if n, _ := DecodeUint256(data); n.Int64() != 42 {
		t.Errorf("result = %v, want 42", n)
	}
	if gotReq.Method != "eth_call" {
		t.Errorf("method = %q, want eth_call", gotReq.Method)
	}
	if len(gotReq.Params) != 2 || gotReq.Params[1] != BlockLatest {
		t.Errorf("params = %v, want block tag %q", gotReq.Params, BlockLatest)
	}
}

func TestRPCClientBlockTag(t *testing.T) {
	var gotReq callEnvelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x"}`))
	}))
	defer server.Close()

	client := NewRPCClient([]string{server.URL}, WithBlockTag("0x10d4f"))
	if _, err := client.EthCall(context.Background(), "0x1", nil); err != nil {
		t.Fatalf("EthCall() error = %v", err)
	}
	if len(gotReq.Params) != 2 || gotReq.Params[1] != "0x10d4f" {
		t.Errorf("params = %v, want block tag 0x10d4f", gotReq.Params)
	}
}

func TestRPCClientErrors(t *testing.T) {
	reverted := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"execution reverted"}}`))
	}))
	defer reverted.Close()
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer limited.Close()

	_, err := NewRPCClient([]string{reverted.URL, limited.URL}).EthCall(context.Background(), "0x1", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *EndpointError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error = %v, want *EndpointError in chain", err)
	}
	if rpcErr.Code != -32000 || rpcErr.Endpoint != reverted.URL {
		t.Errorf("EndpointError = %+v", rpcErr)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError in chain", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", statusErr.StatusCode)
	}

	if _, err := NewRPCClient(nil).EthCall(context.Background(), "0x1", nil); !errors.Is(err, ErrNoEndpoints) {
		t.Errorf("error = %v, want ErrNoEndpoints", err)
	}
}

func TestRPCClientRejectsMismatchedReply(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong id", `{"jsonrpc":"2.0","id":99,"result":"0x2a"}`},
		{"no result", `{"jsonrpc":"2.0","id":1}`},
		{"bad hex", `{"jsonrpc":"2.0","id":1,"result":"0xzz"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			if _, err := NewRPCClient([]string{server.URL}).EthCall(context.Background(), "0x1", nil); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

type mockCaller struct {
	calls  atomic.Int32
	result []byte
	err    error
}

func (m *mockCaller) EthCall(_ context.Context, _ string, _ []byte) ([]byte, error) {
	m.calls.Add(1)
	return m.result, m.err
}

func TestVaultBalanceReaderCachesAddressSet(t *testing.T) {
	caller := &mockCaller{result: encodeGetBassets(1000, 2500)}
	r, err := NewVaultBalanceReader(caller, 0)
	if err != nil {
		t.Fatalf("NewVaultBalanceReader() error = %v", err)
	}
	defer r.Close()

	got, err := r.VaultBalances(context.Background(), []string{"0xMUSD"})
	if err != nil {
		t.Fatalf("VaultBalances() error = %v", err)
	}
	if got["0x00000000000000000000000000000000000000a0"] != "1000" {
		t.Errorf("balances = %v", got)
	}

	if _, err := r.VaultBalances(context.Background(), []string{"0xmusd", "0xmusd"}); err != nil {
		t.Fatalf("second VaultBalances() error = %v", err)
	}
	if n := caller.calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1 (cached)", n)
	}
}

func TestVaultBalanceReaderFailure(t *testing.T) {
	caller := &mockCaller{err: errors.New("rpc down")}
	r, err := NewVaultBalanceReader(caller, 0)
	if err != nil {
		t.Fatalf("NewVaultBalanceReader() error = %v", err)
	}
	defer r.Close()

	if got, err := r.VaultBalances(context.Background(), []string{"0xmusd"}); err == nil || got != nil {
		t.Errorf("VaultBalances() = %v, %v; want nil, error", got, err)
	}
	if got, err := r.VaultBalances(context.Background(), nil); err != nil || len(got) != 0 {
		t.Errorf("VaultBalances(nil) = %v, %v; want empty", got, err)
	}
}
