package main

import "github.com/josh-kwaku/faucet-ledger/internal/cli"

func main() {
	cli.Execute()
}
