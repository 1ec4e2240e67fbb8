// Command sessiond serves the session endpoints and carries the
// administrative helpers that operate on the same configuration.
//
//	sessiond [serve]
//	sessiond hash-password
//	sessiond create-admin -email admin@example.com
package main

import (
	"fmt"
	"log"
	"os"

	"sessiond/cmd/internal/app"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return app.Run()
	case "hash-password":
		return app.HashPasswordCommand(args, os.Stdin, os.Stdout)
	case "create-admin":
		return app.CreateAdminCommand(args, os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("unknown command %q (want serve, hash-password or create-admin)", cmd)
	}
}
