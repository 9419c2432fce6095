// The main package for the catalogcrawler executable.
package main

import (
	"os"

	"github.com/mkattan/catalog-crawler/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
