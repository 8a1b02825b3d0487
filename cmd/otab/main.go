package main

import (
	"flag"
	"fmt"
	"log"
)

const usage = `usage: otab [-config=<path>] <command> [<args>]

Configuration flags:

   -config     The YAML config file for migration specs or batch migration.
               Defaults to otab.yaml in the current directory.

Migration commands
   migrate     Run the named migration spec from the config, or all specs
   batch       Migrate all data files of a batch config to the schema repo head

Schema change commands
   changes     List the validated change records of a schema repository
   template    Write a change record template for the head commit of a repository

Other commands
   help        Display help message
`

var configFlag = flag.String("config", "otab.yaml", "config file path")

func main() {
	flag.Parse()
	log.SetFlags(0)
	args := flag.Args()
	if len(args) == 0 {
		log.Printf("missing command\n\n")
		fmt.Print(usage)
		return
	}
	args = args[1:]
	var err error
	switch cmd := flag.Arg(0); cmd {
	case "migrate":
		err = migrate(args)
	case "batch":
		err = batch(args)
	case "changes":
		err = changes(args)
	case "template":
		err = template(args)
	case "help":
		fmt.Print(usage)
	default:
		log.Printf("unknown command: %s\n\n", cmd)
		fmt.Print(usage)
	}
	if err != nil {
		log.Fatalf("%s error: %+v\n", flag.Arg(0), err)
	}
}
