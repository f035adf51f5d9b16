// Command arquery serves and queries the AR invoice text-to-SQL pipeline.
package main

import "github.com/arquery/arquery/internal/cli"

func main() {
	cli.Execute()
}
