// Package main is the entry point for the recordbase server.
package main

func main() {
	Execute()
}
