// main.go
package main

import (
	"log"

	"ticket-bridge/cmd"
	_ "ticket-bridge/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
