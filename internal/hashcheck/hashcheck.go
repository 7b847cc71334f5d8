// Package hashcheck recomputes a Safe transaction's EIP-712 hash from
// its raw fields and compares it against the hash an indexer reports,
// detecting tampering between submission and execution.
package hashcheck

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	domainSeparatorTypehash    = hexToBytes32("47e79534a245952e8b16893a336b85a3d9ea9fa8c573f3d803afb92a79469218")
	domainSeparatorTypehashOld = hexToBytes32("035aff83d86937d35b32e04f0ddc6ff469290eef2f1b692d8a815c89404d4749")
	safeTxTypehash             = hexToBytes32("bb8310d486368db6bd6f849402fdd73ad53d316b5a4b2644ad6efe0f941286d8")
	safeTxTypehashOld          = hexToBytes32("14d461bc7412367e924637b363c7bf29b8f47e2f84869f4426e5633d8af47b20")
)

func hexToBytes32(s string) [32]byte {
	var b [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		panic("hashcheck: malformed typehash constant " + s)
	}
	copy(b[:], raw)
	return b
}

// Request carries the raw Safe transaction fields needed to recompute
// its hash. Gas-related fields and value accept either hex ("0x...")
// or decimal string encoding, matching the shapes an indexer emits.
type Request struct {
	To              string
	Value           string
	Data            string
	Operation       uint8
	SafeTxGas       string
	BaseGas         string
	GasPrice        string
	GasToken        string
	RefundReceiver  string
	Nonce           uint64
	APISafeTxHash   string
	SafeAddress     string
	ChainID         uint64
	SafeVersion     string
}

// CalculatedHashes are the three hashes this package derives.
type CalculatedHashes struct {
	DomainHash  string `json:"domainHash"`
	MessageHash string `json:"messageHash"`
	SafeTxHash  string `json:"safeTxHash"`
}

// APIHashes is the indexer-reported hash being checked against.
type APIHashes struct {
	SafeTxHash string `json:"safeTxHash"`
}

// Result is the outcome of one verification.
type Result struct {
	Verified   bool
	Calculated CalculatedHashes
	API        APIHashes
	ChainID    uint64
	SafeAddress string
	SafeVersion string
	Error      string
}

// Verify recomputes the Safe transaction hash and compares it against
// the indexer-reported hash in req.APISafeTxHash.
func Verify(req Request) Result {
	domainHash, messageHash, safeTxHash, err := calculateAllHashes(req)
	if err != nil {
		return Result{
			Verified:    false,
			API:         APIHashes{SafeTxHash: req.APISafeTxHash},
			ChainID:     req.ChainID,
			SafeAddress: req.SafeAddress,
			SafeVersion: req.SafeVersion,
			Error:       fmt.Sprintf("hash verification failed: %v", err),
		}
	}

	calculatedHex := "0x" + hex.EncodeToString(safeTxHash[:])
	verified := strings.EqualFold(calculatedHex, req.APISafeTxHash)

	result := Result{
		Verified: verified,
		Calculated: CalculatedHashes{
			DomainHash:  "0x" + hex.EncodeToString(domainHash[:]),
			MessageHash: "0x" + hex.EncodeToString(messageHash[:]),
			SafeTxHash:  calculatedHex,
		},
		API:         APIHashes{SafeTxHash: req.APISafeTxHash},
		ChainID:     req.ChainID,
		SafeAddress: req.SafeAddress,
		SafeVersion: req.SafeVersion,
	}
	if !verified {
		result.Error = "CRITICAL: Safe transaction hash mismatch! Transaction may have been tampered with."
	}
	return result
}

func calculateAllHashes(req Request) (domainHash, messageHash, safeTxHash [32]byte, err error) {
	domainHash, err = calculateDomainHash(req.SafeVersion, req.ChainID, req.SafeAddress)
	if err != nil {
		return
	}
	messageHash, err = calculateMessageHash(req)
	if err != nil {
		return
	}
	safeTxHash = calculateSafeTxHash(domainHash, messageHash)
	return
}

func calculateDomainHash(version string, chainID uint64, safeAddress string) ([32]byte, error) {
	if !common.IsHexAddress(safeAddress) {
		return [32]byte{}, fmt.Errorf("invalid Safe address: %s", safeAddress)
	}
	address := common.HexToAddress(safeAddress)

	cleanVersion := parseVersion(version)

	var data []byte
	if compareVersions(cleanVersion, "1.2.0") <= 0 {
		data = append(data, domainSeparatorTypehashOld[:]...)
		data = append(data, leftPadAddress(address)...)
	} else {
		data = append(data, domainSeparatorTypehash[:]...)
		data = append(data, leftPadUint256(new(big.Int).SetUint64(chainID))...)
		data = append(data, leftPadAddress(address)...)
	}

	return crypto.Keccak256Hash(data), nil
}

func calculateMessageHash(req Request) ([32]byte, error) {
	if !common.IsHexAddress(req.To) {
		return [32]byte{}, fmt.Errorf("invalid to address: %s", req.To)
	}
	toAddress := common.HexToAddress(req.To)

	valueUint, err := parseUintString(req.Value)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid value: %w", err)
	}

	dataBytes, err := hex.DecodeString(strings.TrimPrefix(req.Data, "0x"))
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid data hex: %w", err)
	}
	dataHash := crypto.Keccak256Hash(dataBytes)

	safeTxGasUint, err := parseUintString(req.SafeTxGas)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid safeTxGas: %w", err)
	}
	baseGasUint, err := parseUintString(req.BaseGas)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid baseGas: %w", err)
	}
	gasPriceUint, err := parseUintString(req.GasPrice)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid gasPrice: %w", err)
	}

	if !common.IsHexAddress(req.GasToken) {
		return [32]byte{}, fmt.Errorf("invalid gas token: %s", req.GasToken)
	}
	gasTokenAddress := common.HexToAddress(req.GasToken)

	if !common.IsHexAddress(req.RefundReceiver) {
		return [32]byte{}, fmt.Errorf("invalid refund receiver: %s", req.RefundReceiver)
	}
	refundReceiverAddress := common.HexToAddress(req.RefundReceiver)

	cleanVersion := parseVersion(req.SafeVersion)
	typehash := safeTxTypehash
	if compareVersions(cleanVersion, "1.0.0") < 0 {
		typehash = safeTxTypehashOld
	}

	var data []byte
	data = append(data, typehash[:]...)
	data = append(data, leftPadAddress(toAddress)...)
	data = append(data, leftPadUint256(valueUint)...)
	data = append(data, dataHash[:]...)
	data = append(data, leftPadUint256(new(big.Int).SetUint64(uint64(req.Operation)))...)
	data = append(data, leftPadUint256(safeTxGasUint)...)
	data = append(data, leftPadUint256(baseGasUint)...)
	data = append(data, leftPadUint256(gasPriceUint)...)
	data = append(data, leftPadAddress(gasTokenAddress)...)
	data = append(data, leftPadAddress(refundReceiverAddress)...)
	data = append(data, leftPadUint256(new(big.Int).SetUint64(req.Nonce))...)

	return crypto.Keccak256Hash(data), nil
}

func calculateSafeTxHash(domainHash, messageHash [32]byte) [32]byte {
	data := make([]byte, 0, 66)
	data = append(data, 0x19, 0x01)
	data = append(data, domainHash[:]...)
	data = append(data, messageHash[:]...)
	return crypto.Keccak256Hash(data)
}

func leftPadAddress(addr common.Address) []byte {
	padded := make([]byte, 32)
	copy(padded[12:], addr.Bytes())
	return padded
}

func leftPadUint256(v *big.Int) []byte {
	padded := make([]byte, 32)
	b := v.Bytes()
	copy(padded[32-len(b):], b)
	return padded
}

// parseVersion strips a leading v/V and any build-metadata suffix
// ("1.3.0+L2" -> "1.3.0").
func parseVersion(version string) string {
	v := strings.TrimSpace(version)
	v = strings.TrimLeft(v, "vV")
	if idx := strings.Index(v, "+"); idx >= 0 {
		v = v[:idx]
	}
	if v == "" {
		return "1.3.0"
	}
	return v
}

// compareVersions compares two dotted-integer version strings
// componentwise, treating missing trailing components as zero.
func compareVersions(v1, v2 string) int {
	p1 := versionParts(v1)
	p2 := versionParts(v2)

	n := len(p1)
	if len(p2) > n {
		n = len(p2)
	}
	for i := 0; i < n; i++ {
		var a, b int
		if i < len(p1) {
			a = p1[i]
		}
		if i < len(p2) {
			b = p2[i]
		}
		if a > b {
			return 1
		}
		if a < b {
			return -1
		}
	}
	return 0
}

func versionParts(v string) []int {
	segments := strings.Split(v, ".")
	parts := make([]int, 0, len(segments))
	for _, s := range segments {
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		parts = append(parts, n)
	}
	return parts
}

// parseUintString parses a hex ("0x...") or decimal string into a
// big.Int, treating "", "0x", and "0x0" as zero.
func parseUintString(s string) (*big.Int, error) {
	if s == "" || s == "0x" || s == "0x0" {
		return big.NewInt(0), nil
	}

	if strings.HasPrefix(s, "0x") {
		n, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
		if !ok {
			return nil, fmt.Errorf("failed to parse hex uint: %s", s)
		}
		return n, nil
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse uint: %s", s)
	}
	return n, nil
}
