// configgen writes starter DrawNet config files and validates existing
// session configs.
package main

import (
	"flag"
	"log"

	"github.com/inkwell-paint/drawnet/internal/config"
)

func main() {
	kind := flag.String("kind", config.KindSession, "config kind: session|daemon")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing session config file")
	input := flag.String("input", "session.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if *kind != config.KindSession {
			log.Fatalf("validation supports the session kind only; drawnetd validates its own config at startup")
		}
		if _, err := config.Load(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated session config at %s", *input)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case config.KindSession:
			target = "session.toml"
		case config.KindDaemon:
			target = "drawnetd.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
