// derive_key.go prints the authority key pair for a hex-encoded private key
// file, or derives one from a mnemonic at m/44'/8888'/0'/0/<index>.
//
// Usage:
//
//	go run scripts/derive_key.go <keyfile>
//	go run scripts/derive_key.go -mnemonic "<words>" -index 0
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-ledger/internal/keys"
	"github.com/Klingon-tech/klingnet-ledger/pkg/crypto"
)

func main() {
	mnemonic := flag.String("mnemonic", "", "BIP-39 mnemonic to derive from")
	index := flag.Uint("index", 0, "Authority index")
	flag.Parse()

	var (
		key *crypto.PrivateKey
		err error
	)
	switch {
	case *mnemonic != "":
		key, err = keys.DeriveAuthorityKey(strings.Join(strings.Fields(*mnemonic), " "), uint32(*index))
	case flag.NArg() == 1:
		key, err = readKey(flag.Arg(0))
	default:
		fmt.Fprintln(os.Stderr, "usage: derive_key <keyfile> | -mnemonic <words> [-index n]")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	pub := key.PublicKey()
	fmt.Printf("privkey=%s\n", hex.EncodeToString(key.Serialize()))
	fmt.Printf("pubkey=%s\n", pub)
}

func readKey(path string) (*crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}
	return crypto.PrivateKeyFromBytes(keyBytes)
}
