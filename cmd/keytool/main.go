// Command keytool encrypts the trading key into a key file that polyarb can
// load with wallet.encrypted_key_path, and verifies existing key files.
//
//	keytool -out key.json            # key from PRIVATE_KEY or stdin
//	keytool -verify key.json         # prints the address
//
// The password is read from POLYARB_WALLET_KEY_PASSWORD.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cryptogyan1/polyarb/internal/crypto"
)

func main() {
	out := flag.String("out", "", "write an encrypted key file to this path")
	verify := flag.String("verify", "", "decrypt this key file and print its address")
	iterations := flag.Int("iterations", crypto.DefaultIterations, "PBKDF2 iterations")
	flag.Parse()

	password := os.Getenv("POLYARB_WALLET_KEY_PASSWORD")
	if password == "" {
		fatal("POLYARB_WALLET_KEY_PASSWORD is not set")
	}

	switch {
	case *verify != "":
		key, err := crypto.LoadKey(crypto.KeyConfig{EncryptedKeyPath: *verify, KeyPassword: password})
		if err != nil {
			fatal(err.Error())
		}
		fmt.Println(address(key))

	case *out != "":
		key := strings.TrimSpace(os.Getenv("PRIVATE_KEY"))
		if key == "" {
			fmt.Fprint(os.Stderr, "private key: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				fatal("reading key: " + err.Error())
			}
			key = strings.TrimSpace(line)
		}
		if err := crypto.WriteKeyFile(*out, key, password, *iterations); err != nil {
			fatal(err.Error())
		}
		fmt.Printf("wrote %s for %s\n", *out, address(key))

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func address(keyHex string) string {
	s, err := crypto.NewSigner(keyHex, crypto.Domain{})
	if err != nil {
		fatal(err.Error())
	}
	return s.Address().Hex()
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "keytool:", msg)
	os.Exit(1)
}
