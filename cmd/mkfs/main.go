// Command mkfs formats a fresh set of raidfs backing images.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mrpotato53/raidfs"
	"github.com/mrpotato53/raidfs/mkfs"
)

func main() {
	app := &cli.App{
		Name:      "mkfs.raidfs",
		Usage:     "format a set of backing images as a raidfs filesystem",
		UsageText: "mkfs.raidfs -r <mode> -d <path> -d <path> [-d <path> ...] -i <inodes> -b <blocks>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "r",
				Usage:    "RAID mode: 0 (striped), 1 (mirrored), 1v (mirrored-verified)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "d",
				Usage:    "backing image path; repeat for each image, at least two required",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:     "i",
				Usage:    "number of inodes (rounded up to a multiple of 32)",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:     "b",
				Usage:    "number of data blocks (rounded up to a multiple of 32)",
				Required: true,
			},
		},
		Action: runFormat,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs.raidfs: %s\n", err)
		os.Exit(1)
	}
}

func runFormat(c *cli.Context) error {
	mode, err := raidfs.ParseRAIDMode(c.String("r"))
	if err != nil {
		return err
	}

	opts := mkfs.Options{
		Mode:          mode,
		ImagePaths:    c.StringSlice("d"),
		NumInodes:     c.Uint64("i"),
		NumDataBlocks: c.Uint64("b"),
	}

	if err := mkfs.Format(opts); err != nil {
		return err
	}

	log.Printf(
		"formatted %d image(s) as %s: %d inodes, %d data blocks",
		len(opts.ImagePaths), mode, opts.NumInodes, opts.NumDataBlocks)
	return nil
}
