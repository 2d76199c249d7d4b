package main

import (
	"log"

	"dogao/order-service/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		log.Fatalf("dogao: %v", err)
	}
}
