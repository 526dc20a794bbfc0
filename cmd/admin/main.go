package main

import (
	"encoding/json"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "state":
			stateCmd(os.Args[2:])
			return
		case "rounds":
			roundsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin state|rounds|db [flags]")
	os.Exit(2)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
