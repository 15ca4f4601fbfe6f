// Command blobmount mounts a flat blob storage container as a local
// hierarchical file system (§1).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "blobmount",
	Short: "Mount a blob storage container as a local file system",
	Long: `blobmount projects a flat, name-keyed blob storage container onto a
local directory, translating OS file operations into object store requests
("/" delimited keys become directories, individual keys become files).`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blobmount version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
