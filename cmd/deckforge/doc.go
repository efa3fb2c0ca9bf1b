// Command deckforge is the CLI for the document-to-deck pipeline: it runs
// the processing daemon and offers submit, status, cancel, retry, queue,
// and config subcommands against the shared queue database.
package main
