package model_test

import (
	"testing"

	"github.com/freshgrlc/freshgrlc-indexer/model"
)

func TestTxoutTypeFromRPCRoundTrip(t *testing.T) {
	cases := map[string]model.TxoutType{
		"pubkey":                model.TxoutP2PK,
		"pubkeyhash":            model.TxoutP2PKH,
		"scripthash":            model.TxoutP2SH,
		"witness_v0_keyhash":    model.TxoutP2WPKH,
		"witness_v0_scripthash": model.TxoutP2WSH,
		"nonstandard":           model.TxoutRaw,
	}
	for rpc, want := range cases {
		if got := model.TxoutTypeFromRPC(rpc); got != want {
			t.Errorf("TxoutTypeFromRPC(%q) = %v, want %v", rpc, got, want)
		}
	}
}

func TestTxoutTypeString(t *testing.T) {
	cases := map[model.TxoutType]string{
		model.TxoutP2PK:    "p2pk",
		model.TxoutP2PKH:   "p2pkh",
		model.TxoutP2SH:    "p2sh",
		model.TxoutP2WPKH:  "p2wpkh",
		model.TxoutP2WSH:   "p2wsh",
		model.TxoutRaw:     "raw",
		model.TxoutType(99): "raw",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Errorf("TxoutType(%d).String() = %q, want %q", in, got, want)
		}
	}
}

func TestAddressTypeString(t *testing.T) {
	cases := map[model.AddressType]string{
		model.AddressBase58:      "base58",
		model.AddressBech32:      "bech32",
		model.AddressData:        "data",
		model.AddressRaw:         "raw",
		model.AddressType(99): "raw",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Errorf("AddressType(%d).String() = %q, want %q", in, got, want)
		}
	}
}
