//go:build ignore

// This script generates a node identity key and a master key for a new token node
// Run with: go run scripts/generate-node-keys.go -name alice

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/party"
)

func main() {
	name := flag.String("name", "", "Well-known party name of the node")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: generate-node-keys -name <party name>")
		os.Exit(1)
	}

	kp, err := keys.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating node key: %v\n", err)
		os.Exit(1)
	}
	masterKey, err := keys.GenerateMasterKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating master key: %v\n", err)
		os.Exit(1)
	}
	self := party.WellKnown(*name, kp.PublicKey)

	fmt.Println("=== Token Node Identity ===")
	fmt.Println()
	fmt.Printf("export NODE_PRIVATE_KEY=%s\n", hex.EncodeToString(kp.PrivateKey))
	fmt.Printf("export TOKEN_NODE_MASTER_KEY=%s\n", keys.MasterKeyToBase64(masterKey))
	fmt.Println()
	fmt.Println("Peer entry for other nodes:")
	fmt.Printf("  - party_id: %s\n", self.ID)
	fmt.Printf("    public_key: %s\n", kp.PublicKeyHex())
	fmt.Println("    address: <host>:7600")
}
