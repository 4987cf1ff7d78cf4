// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panoptisDev/marmo/go/marmo"
)

// intentInputs lists the intent fields shared by all entry points taking an
// intent, in the order of marmo.IntentArguments.
const intentInputs = `
	{"name":"_dependencies","type":"bytes"},
	{"name":"_to","type":"address"},
	{"name":"_value","type":"uint256"},
	{"name":"_data","type":"bytes"},
	{"name":"_minGasLimit","type":"uint256"},
	{"name":"_maxGasPrice","type":"uint256"},
	{"name":"_salt","type":"bytes"},
	{"name":"_expiration","type":"uint256"}`

const walletABIJSON = `[
	{"type":"function","name":"init","stateMutability":"nonpayable",
	 "inputs":[{"name":"_signer","type":"address"}],"outputs":[]},
	{"type":"function","name":"relay","stateMutability":"payable",
	 "inputs":[` + intentInputs + `,{"name":"_signature","type":"bytes"}],
	 "outputs":[{"name":"success","type":"bool"},{"name":"result","type":"bytes"}]},
	{"type":"function","name":"relayVia","stateMutability":"payable",
	 "inputs":[{"name":"_logic","type":"address"},` + intentInputs + `,{"name":"_signature","type":"bytes"}],
	 "outputs":[{"name":"success","type":"bool"},{"name":"result","type":"bytes"}]},
	{"type":"function","name":"cancel","stateMutability":"nonpayable",
	 "inputs":[{"name":"_id","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"signer","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"relayedBy","stateMutability":"view",
	 "inputs":[{"name":"_id","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"isRelayedBy","stateMutability":"view",
	 "inputs":[{"name":"_id","type":"bytes32"},{"name":"_relayer","type":"address"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"relayedAt","stateMutability":"view",
	 "inputs":[{"name":"_id","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isCanceled","stateMutability":"view",
	 "inputs":[{"name":"_id","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"encodeTransactionData","stateMutability":"view",
	 "inputs":[` + intentInputs + `],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"encodeTransactionDataVia","stateMutability":"view",
	 "inputs":[{"name":"_logic","type":"address"},` + intentInputs + `],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"event","name":"Relayed","anonymous":false,
	 "inputs":[{"name":"_id","type":"bytes32","indexed":true},
	           {"name":"_success","type":"bool","indexed":false},
	           {"name":"_result","type":"bytes","indexed":false}]},
	{"type":"event","name":"Canceled","anonymous":false,
	 "inputs":[{"name":"_id","type":"bytes32","indexed":true}]}
]`

// ABI is the interface of a wallet, shared by the proxy and all logic
// modules.
var ABI = mustParseABI(walletABIJSON)

func mustParseABI(definition string) abi.ABI {
	res, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI definition: %v", err))
	}
	return res
}

var (
	relayMethod    = ABI.Methods["relay"]
	relayViaMethod = ABI.Methods["relayVia"]
	relayedEvent   = ABI.Events["Relayed"]
	canceledEvent  = ABI.Events["Canceled"]
)

// RelayedTopic and CanceledTopic identify the events emitted by wallets.
var (
	RelayedTopic  = relayedEvent.ID
	CanceledTopic = canceledEvent.ID
)

// PackInit encodes a call binding a wallet to its owner.
func PackInit(owner marmo.Address) []byte {
	return mustPack("init", common.Address(owner))
}

// PackRelay encodes a call relaying an intent through the default logic
// module of a wallet.
func PackRelay(intent marmo.Intent, signature []byte) []byte {
	return mustPack("relay", append(intent.Values(), nonNil(signature))...)
}

// PackRelayVia encodes a call relaying an intent through the given logic
// module.
func PackRelayVia(module marmo.Address, intent marmo.Intent, signature []byte) []byte {
	args := append([]any{common.Address(module)}, intent.Values()...)
	return mustPack("relayVia", append(args, nonNil(signature))...)
}

// PackCancel encodes a call canceling the intent with the given ID.
func PackCancel(id marmo.Hash) []byte {
	return mustPack("cancel", [32]byte(id))
}

// PackRelayedBy encodes a query for the relayer of an intent. Used as a
// dependency, it is satisfied once the intent has been relayed.
func PackRelayedBy(id marmo.Hash) []byte {
	return mustPack("relayedBy", [32]byte(id))
}

// PackIsRelayedBy encodes a query whether an intent was relayed by the
// given relayer. Used as a dependency, it is satisfied only once that
// relayer has relayed the intent.
func PackIsRelayedBy(id marmo.Hash, relayer marmo.Address) []byte {
	return mustPack("isRelayedBy", [32]byte(id), common.Address(relayer))
}

func mustPack(method string, args ...any) []byte {
	res, err := ABI.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("failed to encode %s call: %v", method, err))
	}
	return res
}

func nonNil(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}

// UnpackRelayResult decodes the output of a relay call.
func UnpackRelayResult(output []byte) (success bool, result []byte, err error) {
	values, err := relayMethod.Outputs.Unpack(output)
	if err != nil {
		return false, nil, err
	}
	return values[0].(bool), values[1].([]byte), nil
}

// Relayed is the outcome record emitted once per relayed intent.
type Relayed struct {
	ID      marmo.Hash
	Success bool
	Result  marmo.Data
}

// ParseRelayed decodes a Relayed event. The result is false if the log is
// not such an event.
func ParseRelayed(log marmo.Log) (Relayed, bool) {
	if len(log.Topics) != 2 || log.Topics[0] != marmo.Hash(RelayedTopic) {
		return Relayed{}, false
	}
	values, err := relayedEvent.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return Relayed{}, false
	}
	return Relayed{
		ID:      log.Topics[1],
		Success: values[0].(bool),
		Result:  values[1].([]byte),
	}, true
}

// ParseCanceled decodes a Canceled event into the ID of the canceled
// intent. The result is false if the log is not such an event.
func ParseCanceled(log marmo.Log) (marmo.Hash, bool) {
	if len(log.Topics) != 2 || log.Topics[0] != marmo.Hash(CanceledTopic) {
		return marmo.Hash{}, false
	}
	return log.Topics[1], true
}
