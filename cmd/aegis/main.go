package main

import (
	"flag"
	"log"

	"aegis-irm/core/appbootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config (env only when empty)")
	flag.Parse()

	if err := appbootstrap.Run(*configPath); err != nil {
		log.Fatal(err)
	}
}
