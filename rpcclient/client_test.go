package rpcclient_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freshgrlc/freshgrlc-indexer/rpcclient"
)

func TestCallSendsBasicAuthAndDecodesResult(t *testing.T) {
	var gotUser, gotPass string
	var gotMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()

		var req struct {
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
			ID     int64         `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotMethod = req.Method

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": 12345,
			"error":  nil,
			"id":     req.ID,
		})
	}))
	defer srv.Close()

	url := "http://rpcuser:rpcpass@" + srv.Listener.Addr().String() + "/"
	client, err := rpcclient.New(url, time.Second)
	if err != nil {
		t.Fatalf("unexpected error building client: %v", err)
	}

	var height int64
	if err := client.Call("getblockcount", nil, &height); err != nil {
		t.Fatalf("unexpected error calling getblockcount: %v", err)
	}

	if gotUser != "rpcuser" || gotPass != "rpcpass" {
		t.Fatalf("expected basic auth rpcuser/rpcpass, got %s/%s", gotUser, gotPass)
	}
	if gotMethod != "getblockcount" {
		t.Fatalf("expected method getblockcount, got %s", gotMethod)
	}
	if height != 12345 {
		t.Fatalf("expected decoded result 12345, got %d", height)
	}
}

func TestCallReturnsRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": nil,
			"error":  map[string]interface{}{"code": -5, "message": "block not found"},
			"id":     1,
		})
	}))
	defer srv.Close()

	url := "http://user:pass@" + srv.Listener.Addr().String() + "/"
	client, err := rpcclient.New(url, time.Second)
	if err != nil {
		t.Fatalf("unexpected error building client: %v", err)
	}

	err = client.Call("getblock", []interface{}{"deadbeef"}, nil)
	if err == nil {
		t.Fatal("expected an error for an RPC error response")
	}
}
