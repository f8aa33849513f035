// Command jwtgate verifies bearer tokens against an OpenID Connect issuer
// and runs a forward-auth service for reverse proxies.
package main

import (
	"os"

	"github.com/gatekeep/go-jwt-gate/cmd/jwtgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
