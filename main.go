package main

import "github.com/naka-gawa/org-stats/cmd"

func main() {
	cmd.Execute()
}
