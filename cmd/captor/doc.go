// Command captor is the CLI for the capture classification pipeline.
package main
