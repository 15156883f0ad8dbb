package solana

import (
	"fmt"
	"net/url"

	"github.com/gagliardetto/solana-go/rpc"
)

const explorerBaseURL = "https://explorer.solana.com"

// ExplorerAddressURL links an address on the Solana explorer
func ExplorerAddressURL(address, cluster string) string {
	return explorerURL("address", address, cluster)
}

// ExplorerTxURL links a transaction signature on the Solana explorer
func ExplorerTxURL(signature, cluster string) string {
	return explorerURL("tx", signature, cluster)
}

func explorerURL(kind, id, cluster string) string {
	link := fmt.Sprintf("%s/%s/%s", explorerBaseURL, kind, id)
	switch cluster {
	case "", "mainnet-beta", "mainnet":
		return link
	case "localnet":
		// the explorer only knows named public clusters
		return link + "?cluster=custom&customUrl=" + url.QueryEscape(rpc.LocalNet_RPC)
	}
	return link + "?cluster=" + cluster
}
