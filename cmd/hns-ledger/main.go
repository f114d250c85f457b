// hns-ledger CLI - Handshake Ledger signing bridge
//
// This CLI exercises the bridge against a Ledger device exposed as a raw
// frame channel over TCP (an emulator such as speculos, or an HID proxy).
//
// Example usage:
//
//	# Query the running app version
//	hns-ledger version --addr 127.0.0.1:9999
//
//	# Retrieve a public key with on-device confirmation
//	hns-ledger pubkey --path "m/44'/5353'/0'/0/0" --confirm --xpub
//
//	# Derive the bech32 address for a path
//	hns-ledger address --path "m/44'/5353'/0'/0/0"
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boymanjor/hns-ledger/pkg/apdu"
	"github.com/boymanjor/hns-ledger/pkg/ledger"
	"github.com/boymanjor/hns-ledger/pkg/transport"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		cmdVersion(os.Args[2:])
	case "pubkey":
		cmdPubkey(os.Args[2:], false)
	case "address":
		cmdPubkey(os.Args[2:], true)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`hns-ledger - Handshake Ledger signing bridge

Usage:
  hns-ledger <command> [options]

Commands:
  version                      Show the app version running on the device
  pubkey                       Retrieve a public key for a derivation path
  address                      Derive the bech32 address for a path
  help                         Show this help message

Common options:
  --addr <host:port>           Device channel address (default 127.0.0.1:9999)
  --timeout <duration>         Exchange timeout (default 5m)
  --trace                      Log raw frame traffic

Examples:
  hns-ledger version
  hns-ledger pubkey --path "m/44'/5353'/0'/0/0" --confirm --xpub
  hns-ledger address --path "m/44'/5353'/0'/0/0"`)
}

// engineFlags registers the options every command shares.
func engineFlags(fs *flag.FlagSet) (addr *string, timeout *time.Duration, trace *bool) {
	addr = fs.String("addr", "127.0.0.1:9999", "device channel address")
	timeout = fs.Duration("timeout", transport.DefaultTimeout, "exchange timeout")
	trace = fs.Bool("trace", false, "log raw frame traffic")
	return addr, timeout, trace
}

func connect(addr string, timeout time.Duration, trace bool) *ledger.HSD {
	log := logrus.New()
	if trace {
		log.SetLevel(logrus.TraceLevel)
	}

	h, err := ledger.New(ledger.Config{
		Transport: transport.NewTCP(addr),
		Logger:    log,
		Timeout:   timeout,
	})
	if err != nil {
		fatalf("Failed to create engine: %v", err)
	}
	if err := h.Open(); err != nil {
		fatalf("Failed to open device channel: %v", err)
	}
	return h
}

func cmdVersion(args []string) {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	addr, timeout, trace := engineFlags(fs)
	fs.Parse(args)

	h := connect(*addr, *timeout, *trace)
	defer h.Close()

	version, err := h.GetAppVersion()
	if err != nil {
		fatalf("Failed to get app version: %v", err)
	}
	fmt.Printf("Handshake app v%s\n", version)
}

func cmdPubkey(args []string, addressOnly bool) {
	fs := flag.NewFlagSet("pubkey", flag.ExitOnError)
	addr, timeout, trace := engineFlags(fs)
	pathStr := fs.String("path", "m/44'/5353'/0'/0/0", "derivation path")
	confirm := fs.Bool("confirm", false, "require on-device confirmation")
	xpub := fs.Bool("xpub", false, "include extended key metadata")
	fs.Parse(args)

	path, err := apdu.ParsePath(*pathStr)
	if err != nil {
		fatalf("Invalid derivation path: %v", err)
	}

	h := connect(*addr, *timeout, *trace)
	defer h.Close()

	opts := apdu.PublicKeyOptions{
		Confirm: *confirm,
		XPub:    *xpub,
		Address: true,
	}
	res, err := h.GetPublicKey(path, opts)
	if err != nil {
		fatalf("Failed to get public key: %v", err)
	}

	if addressOnly {
		fmt.Println(res.Address)
		return
	}

	fmt.Printf("Path:       %s\n", path)
	fmt.Printf("Public key: %s\n", hex.EncodeToString(res.PublicKey))
	fmt.Printf("Address:    %s\n", res.Address)
	if *xpub {
		fmt.Printf("Chain code: %s\n", hex.EncodeToString(res.ChainCode))
		fmt.Printf("Parent FP:  %08x\n", res.ParentFingerprint)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
