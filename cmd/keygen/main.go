// Command keygen generates ECDSA P-256 identity keypairs for the
// signed-request protocol of spec.md §4.D: the public half is written as
// a PEM-encoded PKIX file named `<key-id>.pem`, the shape
// internal/keyring.LoadDirectory expects to find in the server's
// configured keys directory. Grounded on the teacher's
// cmd/keygen/main.go CLI structure (subcommands, flag.NewFlagSet per
// subcommand), adapted from Ed25519 identity keys to ECDSA P-256.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "generate":
		generateCmd(args)
	case "show":
		showCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("keygen - bastionlab identity key management")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  keygen generate -key-id <id> [-keys-dir <dir>]  - Generate a new ECDSA P-256 identity keypair")
	fmt.Println("  keygen show -key-id <id> [-keys-dir <dir>]      - Display a key's fingerprint")
	fmt.Println()
	fmt.Println("Run 'keygen <command> -h' for command-specific help")
}

func generateCmd(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	keysDir := fs.String("keys-dir", "./keys", "Directory to write the key pair into")
	keyID := fs.String("key-id", "", "Key id; the public key is written as <key-id>.pem")
	force := fs.Bool("force", false, "Overwrite an existing key of the same id")
	fs.Parse(args)

	if *keyID == "" {
		fmt.Fprintln(os.Stderr, "generate: -key-id is required")
		os.Exit(1)
	}

	if err := os.MkdirAll(*keysDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating keys directory: %v\n", err)
		os.Exit(1)
	}

	pubPath := filepath.Join(*keysDir, *keyID+".pem")
	privPath := filepath.Join(*keysDir, *keyID+".key.pem")

	if !*force {
		if _, err := os.Stat(pubPath); err == nil {
			fmt.Fprintf(os.Stderr, "A key already exists at %s (pass -force to overwrite)\n", pubPath)
			os.Exit(1)
		}
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate keypair: %v\n", err)
		os.Exit(1)
	}

	if err := writePublicKey(pubPath, &priv.PublicKey); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write public key: %v\n", err)
		os.Exit(1)
	}
	if err := writePrivateKey(privPath, priv); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write private key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Identity keypair generated.")
	fmt.Printf("  key id:      %s\n", *keyID)
	fmt.Printf("  public key:  %s\n", pubPath)
	fmt.Printf("  private key: %s (keep offline; used to sign FetchDataFrame requests)\n", privPath)
	fmt.Printf("  fingerprint: %s\n", fingerprint(&priv.PublicKey))
}

func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	keysDir := fs.String("keys-dir", "./keys", "Directory the key pair lives in")
	keyID := fs.String("key-id", "", "Key id to display")
	fs.Parse(args)

	if *keyID == "" {
		fmt.Fprintln(os.Stderr, "show: -key-id is required")
		os.Exit(1)
	}

	pubPath := filepath.Join(*keysDir, *keyID+".pem")
	raw, err := os.ReadFile(pubPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", pubPath, err)
		os.Exit(1)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		fmt.Fprintln(os.Stderr, "Not a valid PEM file")
		os.Exit(1)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse public key: %v\n", err)
		os.Exit(1)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		fmt.Fprintln(os.Stderr, "Key is not ECDSA")
		os.Exit(1)
	}

	fmt.Printf("Key id:      %s\n", *keyID)
	fmt.Printf("Curve:       %s\n", ecPub.Curve.Params().Name)
	fmt.Printf("Fingerprint: %s\n", fingerprint(ecPub))
}

func writePublicKey(path string, pub *ecdsa.PublicKey) error {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return err
	}
	return os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0644)
}

func writePrivateKey(path string, priv *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	return os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0600)
}

func fingerprint(pub *ecdsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "unavailable"
	}
	sum := sha256.Sum256(der)
	return fmt.Sprintf("SHA256:%x", sum[:8])
}
