// Package main writes a development CA and server certificate for the
// TapKeeper backend, by default into the "certs" directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/atinyakov/TapKeeper/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma-separated DNS names and IPs of the server")
	validFor := flag.Duration("valid-for", 365*24*time.Hour, "certificate lifetime")
	flag.Parse()

	b, err := certgen.Generate(strings.Split(*hosts, ","), *validFor)
	if err != nil {
		log.Fatalf("certgen: %v", err)
	}
	if err := b.WriteFiles(*dir); err != nil {
		log.Fatalf("certgen: %v", err)
	}

	fmt.Printf("Certificates generated into ./%s\n", *dir)
	fmt.Printf("  server: -tls-cert %s/%s -tls-key %s/%s\n", *dir, certgen.ServerCertFile, *dir, certgen.ServerKeyFile)
	fmt.Printf("  client: --ca %s/%s\n", *dir, certgen.CACertFile)
}
