// Package main is the entry point for the campus CLI.
package main

import "github.com/campusdesk/campus/internal/cli"

func main() {
	cli.Execute()
}
