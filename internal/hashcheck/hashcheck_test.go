package hashcheck

import "testing"

func testRequest() Request {
	return Request{
		To:             "0x1111111111111111111111111111111111111111",
		Value:          "1000000000000000000",
		Data:           "0x",
		Operation:      0,
		SafeTxGas:      "0",
		BaseGas:        "0",
		GasPrice:       "0",
		GasToken:       "0x0000000000000000000000000000000000000000",
		RefundReceiver: "0x0000000000000000000000000000000000000000",
		Nonce:          3,
		APISafeTxHash:  "0xnotarealhash",
		SafeAddress:    "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		ChainID:        1,
		SafeVersion:    "1.3.0",
	}
}

func TestVerifyDetectsMismatchAgainstWrongAPIHash(t *testing.T) {
	result := Verify(testRequest())
	if result.Verified {
		t.Fatalf("expected a made-up API hash not to match the calculated hash")
	}
	if result.Error == "" {
		t.Fatalf("expected an error message on mismatch")
	}
	if result.Calculated.SafeTxHash == "" {
		t.Fatalf("expected a calculated hash to still be returned on mismatch")
	}
}

func TestVerifySucceedsWhenAPIHashMatchesCalculated(t *testing.T) {
	req := testRequest()
	first := Verify(req)

	req.APISafeTxHash = first.Calculated.SafeTxHash
	second := Verify(req)

	if !second.Verified {
		t.Fatalf("expected verification to succeed when API hash matches the calculated hash, got error: %s", second.Error)
	}
}

func TestVerifyIsCaseInsensitiveOnAPIHash(t *testing.T) {
	req := testRequest()
	first := Verify(req)

	req.APISafeTxHash = toUpperHex(first.Calculated.SafeTxHash)
	second := Verify(req)

	if !second.Verified {
		t.Fatalf("expected hash comparison to be case-insensitive")
	}
}

func TestDomainHashDiffersByChainID(t *testing.T) {
	req1 := testRequest()
	req1.ChainID = 1
	req2 := testRequest()
	req2.ChainID = 137

	r1 := Verify(req1)
	r2 := Verify(req2)

	if r1.Calculated.DomainHash == r2.Calculated.DomainHash {
		t.Fatalf("expected domain hash to differ across chain IDs")
	}
}

func TestDomainHashDiffersByVersionBoundary(t *testing.T) {
	reqOld := testRequest()
	reqOld.SafeVersion = "1.1.1"
	reqNew := testRequest()
	reqNew.SafeVersion = "1.3.0"

	rOld := Verify(reqOld)
	rNew := Verify(reqNew)

	if rOld.Calculated.DomainHash == rNew.Calculated.DomainHash {
		t.Fatalf("expected the pre-1.2.0 domain separator typehash to produce a different domain hash than 1.3.0")
	}
}

func TestVerifyRejectsInvalidToAddress(t *testing.T) {
	req := testRequest()
	req.To = "not-an-address"

	result := Verify(req)
	if result.Verified {
		t.Fatalf("expected an invalid to-address to fail verification")
	}
	if result.Error == "" {
		t.Fatalf("expected an error describing the invalid address")
	}
}

func toUpperHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
