// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// softie-tool is a small inspection and demo CLI for the Multifile
// container: create a file, write a subfile from stdin or a literal
// argument, read one back out, or print a one-line catalog summary.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/dhasenan/softie"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "write":
		err = runWrite(os.Args[2:])
	case "read":
		err = runRead(os.Args[2:])
	case "ls":
		err = runLs(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		softie.Logger.Errorf("softie-tool: %s", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: softie-tool <create|write|read|ls> [flags]")
}

func runCreate(args []string) error {
	fs := pflag.NewFlagSet("create", pflag.ExitOnError)
	path := fs.StringP("path", "p", "", "path of the multifile to create")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("create: --path is required")
	}

	mf, err := softie.Open(*path, true)
	if err != nil {
		return err
	}
	return mf.Close()
}

func runWrite(args []string) error {
	fs := pflag.NewFlagSet("write", pflag.ExitOnError)
	path := fs.StringP("path", "p", "", "path of the multifile")
	name := fs.StringP("name", "n", "", "subfile name")
	offset := fs.Uint64P("offset", "o", 0, "byte offset to write at")
	value := fs.StringP("value", "v", "", "literal bytes to write; if omitted, reads from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" || *name == "" {
		return fmt.Errorf("write: --path and --name are required")
	}

	data := []byte(*value)
	if *value == "" {
		var err error
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
	}

	mf, err := softie.Open(*path, true)
	if err != nil {
		return err
	}
	defer mf.Close()

	return mf.Write(*name, *offset, data)
}

func runRead(args []string) error {
	fs := pflag.NewFlagSet("read", pflag.ExitOnError)
	path := fs.StringP("path", "p", "", "path of the multifile")
	name := fs.StringP("name", "n", "", "subfile name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" || *name == "" {
		return fmt.Errorf("read: --path and --name are required")
	}

	mf, err := softie.Open(*path, false)
	if err != nil {
		return err
	}
	defer mf.Close()

	data, ok, err := mf.Read(*name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("read: no such subfile %q", *name)
	}

	_, err = os.Stdout.Write(data)
	return err
}

func runLs(args []string) error {
	fs := pflag.NewFlagSet("ls", pflag.ExitOnError)
	path := fs.StringP("path", "p", "", "path of the multifile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("ls: --path is required")
	}

	mf, err := softie.Open(*path, false)
	if err != nil {
		return err
	}
	defer mf.Close()

	stats, err := mf.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d entries, index %d bytes, data ends at %d, %d bytes on disk\n",
		stats.Path, stats.EntryCount, stats.IndexSize, stats.DataEnd, stats.OnDiskBytes)
	return nil
}
