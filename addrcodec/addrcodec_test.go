package addrcodec_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/freshgrlc/freshgrlc-indexer/addrcodec"
)

func TestDecodeBase58(t *testing.T) {
	// Bitcoin's genesis block payout address; version byte 0x00, 20-byte
	// hash160.
	decoded, err := addrcodec.DecodeBase58("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Encoding != addrcodec.EncodingBase58 {
		t.Fatalf("expected base58 encoding, got %v", decoded.Encoding)
	}
	if decoded.Version != 0x00 {
		t.Fatalf("expected version 0x00, got %#x", decoded.Version)
	}
	if len(decoded.Hash) != 20 {
		t.Fatalf("expected a 20-byte hash, got %d bytes", len(decoded.Hash))
	}
}

func TestDecodeBase58Malformed(t *testing.T) {
	if _, err := addrcodec.DecodeBase58("not-an-address"); err == nil {
		t.Fatal("expected an error decoding a malformed base58 string")
	}
}

func TestDecodeBech32(t *testing.T) {
	// BIP-173 test vector: mainnet P2WPKH, witness version 0.
	decoded, err := addrcodec.DecodeBech32("BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Encoding != addrcodec.EncodingBech32 {
		t.Fatalf("expected bech32 encoding, got %v", decoded.Encoding)
	}
	if decoded.Version != 0 {
		t.Fatalf("expected witness version 0, got %d", decoded.Version)
	}
	want, _ := hex.DecodeString("751e76e8199196d454941c45d1b3a323f1433bd6")
	if !bytes.Equal(decoded.Hash, want) {
		t.Fatalf("witness program mismatch: got %x, want %x", decoded.Hash, want)
	}
}

func TestDecodeAnyPicksEncodingByShape(t *testing.T) {
	base58Decoded, err := addrcodec.DecodeAny("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	if err != nil {
		t.Fatalf("unexpected error decoding base58 via DecodeAny: %v", err)
	}
	if base58Decoded.Encoding != addrcodec.EncodingBase58 {
		t.Fatalf("expected base58 encoding for a short legacy address")
	}

	bech32Decoded, err := addrcodec.DecodeAny("BC1QW508D6QEJXTDG4Y5R3ZARVARY0C5XW7KV8F3T4")
	if err != nil {
		t.Fatalf("unexpected error decoding bech32 via DecodeAny: %v", err)
	}
	if bech32Decoded.Encoding != addrcodec.EncodingBech32 {
		t.Fatalf("expected bech32 encoding for a long segwit address")
	}
}
