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
	"errors"
	"fmt"

	"github.com/panoptisDev/marmo/go/client"
	"github.com/panoptisDev/marmo/go/factory"
	"github.com/panoptisDev/marmo/go/marmo"
	"github.com/urfave/cli/v2"
)

var (
	walletFlag = &cli.StringFlag{
		Name:     "wallet",
		Usage:    "address of the wallet relaying the intent",
		Required: true,
	}
	moduleFlag = &cli.StringFlag{
		Name:  "module",
		Usage: "logic module the intent is bound to, the default module if unset",
	}
	keyFlag = &cli.StringFlag{
		Name:     "key",
		Usage:    "hex encoded private key of the wallet owner",
		Required: true,
		EnvVars:  []string{"MARMO_KEY"},
	}
)

var IdCmd = cli.Command{
	Action:    doId,
	Name:      "id",
	Usage:     "Computes the identifier of an intent",
	ArgsUsage: "<intent.json>",
	Flags:     []cli.Flag{walletFlag, moduleFlag},
}

var SignCmd = cli.Command{
	Action:    doSign,
	Name:      "sign",
	Usage:     "Signs an intent and prints the resulting relay call",
	ArgsUsage: "<intent.json>",
	Flags:     []cli.Flag{walletFlag, moduleFlag, keyFlag},
}

var PredictCmd = cli.Command{
	Action: doPredict,
	Name:   "predict",
	Usage:  "Computes the address of the wallet of an owner",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "factory", Usage: "address of the factory", Required: true},
		&cli.StringFlag{Name: "logic", Usage: "default logic module of the factory", Required: true},
		&cli.StringFlag{Name: "owner", Usage: "address of the owner", Required: true},
	},
}

func doId(context *cli.Context) error {
	signed, err := loadIntent(context)
	if err != nil {
		return err
	}
	fmt.Println(signed.ID())
	return nil
}

func doSign(context *cli.Context) error {
	signed, err := loadIntent(context)
	if err != nil {
		return err
	}
	signer, err := client.SignerFromHex(context.String(keyFlag.Name))
	if err != nil {
		return err
	}
	if signed.Module == nil {
		signed, err = signer.SignIntent(signed.Wallet, signed.Intent)
	} else {
		signed, err = signer.SignModuleIntent(signed.Wallet, *signed.Module, signed.Intent)
	}
	if err != nil {
		return err
	}
	fmt.Printf("id:        %v\n", signed.ID())
	fmt.Printf("signer:    %v\n", signer.Address())
	fmt.Printf("signature: %v\n", signed.Signature)
	fmt.Printf("calldata:  %v\n", marmo.Data(signed.Calldata()))
	return nil
}

func doPredict(context *cli.Context) error {
	var addresses [3]marmo.Address
	for i, name := range []string{"factory", "logic", "owner"} {
		address, err := parseAddress(context, name)
		if err != nil {
			return err
		}
		addresses[i] = address
	}
	fmt.Println(factory.PredictWallet(addresses[0], addresses[1], addresses[2]))
	return nil
}

// loadIntent reads the intent named by the first argument and binds it to
// the wallet and module given by flags.
func loadIntent(context *cli.Context) (client.SignedIntent, error) {
	if context.Args().Len() != 1 {
		return client.SignedIntent{}, errors.New("expected exactly one intent file")
	}
	intent, err := client.LoadIntent(context.Args().First())
	if err != nil {
		return client.SignedIntent{}, err
	}
	walletAddress, err := parseAddress(context, walletFlag.Name)
	if err != nil {
		return client.SignedIntent{}, err
	}
	res := client.SignedIntent{Wallet: walletAddress, Intent: intent}
	if context.IsSet(moduleFlag.Name) {
		module, err := parseAddress(context, moduleFlag.Name)
		if err != nil {
			return client.SignedIntent{}, err
		}
		res.Module = &module
	}
	return res, nil
}

func parseAddress(context *cli.Context, flag string) (marmo.Address, error) {
	address, err := marmo.AddressFromHex(context.String(flag))
	if err != nil {
		return marmo.Address{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return address, nil
}
