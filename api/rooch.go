package api

import "encoding/json"

// Rooch JSON-RPC method names.
const (
	MethodSendRawTransaction  = "rooch_sendRawTransaction"
	MethodGetChainID          = "rooch_getChainID"
	MethodExecuteViewFunction = "rooch_executeViewFunction"
	MethodGetStates           = "rooch_getStates"
	MethodListStates          = "rooch_listStates"
	MethodDiscover            = "rpc.discover"
)

// FunctionCall identifies a Move function and its arguments for view execution.
type FunctionCall struct {
	FunctionID string   `json:"function_id"`
	TyArgs     []string `json:"ty_args"`
	Args       []string `json:"args"`
}

// ExecuteViewFunctionParams are the parameters of rooch_executeViewFunction.
type ExecuteViewFunctionParams struct {
	FunctionID string   `json:"function_id"`
	TyArgs     []string `json:"ty_args,omitempty"`
	Args       []string `json:"args,omitempty"`
}

// FunctionCall converts params to the wire call object.
func (p ExecuteViewFunctionParams) FunctionCall() FunctionCall {
	tyArgs, args := p.TyArgs, p.Args
	if tyArgs == nil {
		tyArgs = []string{}
	}
	if args == nil {
		args = []string{}
	}
	return FunctionCall{FunctionID: p.FunctionID, TyArgs: tyArgs, Args: args}
}

// AnnotatedFunctionReturnValueView is a single decoded return value.
type AnnotatedFunctionReturnValueView struct {
	Value        json.RawMessage `json:"value"`
	DecodedValue json.RawMessage `json:"decoded_value,omitempty"`
}

// AnnotatedFunctionResultView is the result of a view function execution.
type AnnotatedFunctionResultView struct {
	VMStatus     json.RawMessage                    `json:"vm_status"`
	ReturnValues []AnnotatedFunctionReturnValueView `json:"return_values,omitempty"`
}

// StateView is a single object state read from the node.
type StateView struct {
	Value        string          `json:"value"`
	ValueType    string          `json:"value_type"`
	DecodedValue json.RawMessage `json:"decoded_value,omitempty"`
}

// StateKVView pairs a state with its key in a listing page.
type StateKVView struct {
	Key   string    `json:"key"`
	State StateView `json:"state"`
}

// StatePageView is one page of rooch_listStates.
type StatePageView struct {
	Data        []StateKVView `json:"data"`
	NextCursor  *string       `json:"next_cursor,omitempty"`
	HasNextPage bool          `json:"has_next_page"`
}

// ListStatesParams are the parameters of rooch_listStates.
type ListStatesParams struct {
	AccessPath string  `json:"access_path"`
	Cursor     *string `json:"cursor,omitempty"`
	Limit      *int    `json:"limit,omitempty"`
}
