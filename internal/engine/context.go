package engine

// ParameterContext is one decoded calldata parameter.
type ParameterContext struct {
	Name      string `json:"name"`
	ParamType string `json:"type"`
	Value     any    `json:"value"`
}

// DataDecodedContext is the indexer's decoded-calldata shape.
type DataDecodedContext struct {
	Method     string             `json:"method"`
	Parameters []ParameterContext `json:"parameters,omitempty"`
}

// TransactionContext is the full set of fields a Safe transaction
// carries into rule evaluation. ChainID and SafeVersion are populated
// by the worker from the Safe-info/chain-id collaborators, not from
// the indexer transaction payload itself.
type TransactionContext struct {
	To              string
	Value           *string
	Data            *string
	DataDecoded     *DataDecodedContext
	Operation       *uint8
	GasToken        *string
	SafeTxGas       *string
	BaseGas         *string
	GasPrice        *string
	RefundReceiver  *string
	Nonce           *uint64
	SafeTxHash      *string
	Trusted         *bool
	ChainID         *uint64
	SafeVersion     *string
	SafeAddress     *string
}

// ToValue renders the context as the dynamic field tree conditions walk,
// applying the same defaults the original rule catalogue relies on:
// an absent gas token / refund receiver reads as the zero address, and
// absent gas fields read as "0" rather than null.
func (c *TransactionContext) ToValue() map[string]any {
	m := map[string]any{"to": c.To}

	if c.Value != nil {
		m["value"] = *c.Value
	}
	if c.Data != nil {
		m["data"] = *c.Data
	}
	if c.DataDecoded != nil {
		dd := map[string]any{"method": c.DataDecoded.Method}
		if c.DataDecoded.Parameters != nil {
			params := make([]map[string]any, 0, len(c.DataDecoded.Parameters))
			for _, p := range c.DataDecoded.Parameters {
				params = append(params, map[string]any{
					"name":  p.Name,
					"type":  p.ParamType,
					"value": p.Value,
				})
			}
			dd["parameters"] = params
		}
		m["dataDecoded"] = dd
	}
	if c.Operation != nil {
		m["operation"] = float64(*c.Operation)
	}
	if c.GasToken != nil {
		m["gasToken"] = *c.GasToken
	} else {
		m["gasToken"] = ZeroAddress
	}
	if c.SafeTxGas != nil {
		m["safeTxGas"] = *c.SafeTxGas
	} else {
		m["safeTxGas"] = "0"
	}
	if c.BaseGas != nil {
		m["baseGas"] = *c.BaseGas
	} else {
		m["baseGas"] = "0"
	}
	if c.GasPrice != nil {
		m["gasPrice"] = *c.GasPrice
	} else {
		m["gasPrice"] = "0"
	}
	if c.RefundReceiver != nil {
		m["refundReceiver"] = *c.RefundReceiver
	} else {
		m["refundReceiver"] = ZeroAddress
	}
	if c.Nonce != nil {
		m["nonce"] = float64(*c.Nonce)
	}
	if c.SafeTxHash != nil {
		m["safeTxHash"] = *c.SafeTxHash
	}
	if c.Trusted != nil {
		m["trusted"] = *c.Trusted
	}

	return m
}

// CallTypeInfo describes how a transaction's operation byte and target
// address relate to the canonical delegate-call whitelist.
type CallTypeInfo struct {
	IsCall            bool
	IsDelegateCall    bool
	IsTrustedDelegate bool
	ContractAddress   string
	ContractName      *string
}
