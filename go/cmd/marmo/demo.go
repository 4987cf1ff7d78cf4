// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/dsnet/golib/unitconv"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/panoptisDev/marmo/go/client"
	"github.com/panoptisDev/marmo/go/factory"
	"github.com/panoptisDev/marmo/go/marmo"
	"github.com/panoptisDev/marmo/go/simulation"
	"github.com/panoptisDev/marmo/go/wallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.PathFlag{
		Name:  "config",
		Usage: "TOML configuration of the relayer, a generated key is used if unset",
	}
	intentsFlag = &cli.IntFlag{
		Name:  "intents",
		Usage: "number of intents relayed in a batch",
		Value: 10,
	}
)

var DemoCmd = cli.Command{
	Action: doDemo,
	Name:   "demo",
	Usage:  "Reveals a wallet on a simulated ledger and relays a batch of intents of its owner",
	Flags:  []cli.Flag{configFlag, intentsFlag},
}

var (
	demoLogic    = marmo.NewAddress(0x1000)
	demoFactory  = marmo.NewAddress(0x2000)
	demoReceiver = marmo.NewAddress(0x3000)
)

func doDemo(context *cli.Context) error {
	config, err := demoConfig(context)
	if err != nil {
		return err
	}
	config.Factory = demoFactory
	config.Logic = demoLogic
	numIntents := context.Int(intentsFlag.Name)
	if numIntents <= 0 {
		return fmt.Errorf("invalid number of intents: %d", numIntents)
	}

	ledger, err := simulation.New(simulation.DefaultConfig())
	if err != nil {
		return err
	}
	ledger.Deploy(demoLogic, wallet.NewLogicCode(wallet.LogicV2Program))
	ledger.Deploy(demoFactory, factory.NewFactoryCode(demoLogic))

	registry := prometheus.NewRegistry()
	relayer, err := client.NewRelayer(ledger, config, client.NewMetrics(registry))
	if err != nil {
		return err
	}
	ledger.Fund(relayer.Address(), marmo.NewValue(1_000_000_000_000_000))

	owner, err := client.GenerateSigner()
	if err != nil {
		return err
	}
	walletAddress, err := relayer.Reveal(context.Context, owner.Address())
	if err != nil {
		return err
	}
	log.Info("Revealed wallet", "owner", owner.Address(), "wallet", walletAddress)
	ledger.Fund(walletAddress, marmo.NewValue(uint64(numIntents)))

	batch := make([]client.SignedIntent, 0, numIntents)
	for i := 0; i < numIntents; i++ {
		signed, err := owner.SignModuleIntent(walletAddress, demoLogic, marmo.Intent{
			To:          demoReceiver,
			Value:       marmo.NewValue(1),
			MaxGasPrice: config.GasPrice,
			Salt:        binary.BigEndian.AppendUint64(nil, uint64(i)),
			Expiration:  marmo.NewValue(uint64(ledger.Block().Timestamp + 3600)),
		})
		if err != nil {
			return err
		}
		batch = append(batch, signed)
	}

	outcomes, err := relayer.RelayBatch(context.Context, batch)
	if err != nil {
		return err
	}
	for _, outcome := range outcomes {
		log.Info("Relayed intent", "id", outcome.ID, "success", outcome.Success)
	}

	gasUsed, err := counterValue(registry, "marmo_relayer_gas_used_total")
	if err != nil {
		return err
	}
	transactions, err := counterValue(registry, "marmo_relayer_submitted_total")
	if err != nil {
		return err
	}
	fmt.Printf("wallet:        %v\n", walletAddress)
	fmt.Printf("relayed:       %d intents\n", len(outcomes))
	fmt.Printf("receiver:      %v\n", ledger.GetBalance(demoReceiver).ToBig())
	fmt.Printf("gas used:      %sgas\n", unitconv.FormatPrefix(gasUsed, unitconv.SI, 2))
	fmt.Printf("gas per tx:    %sgas\n", unitconv.FormatPrefix(gasUsed/transactions, unitconv.SI, 2))
	return nil
}

func demoConfig(context *cli.Context) (client.Config, error) {
	if path := context.Path(configFlag.Name); path != "" {
		return client.LoadConfig(path)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return client.Config{}, err
	}
	config := client.DefaultConfig()
	config.Key = hex.EncodeToString(crypto.FromECDSA(key))
	return config, nil
}

func counterValue(gatherer prometheus.Gatherer, name string) (float64, error) {
	families, err := gatherer.Gather()
	if err != nil {
		return 0, err
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		sum := 0.0
		for _, metric := range family.GetMetric() {
			sum += metric.GetCounter().GetValue()
		}
		return sum, nil
	}
	return 0, fmt.Errorf("no metric %s", name)
}
