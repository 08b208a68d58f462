// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

// Command lpmroutes loads a route table from a text file and answers
// longest-prefix-match queries for the addresses given as arguments.
//
// The routes file holds one "prefix value" pair per line, eg.
//
//	10.0.0.0/8      core
//	10.20.0.0/16    dc1
//	2001:db8::/32   lab
//
// Lines starting with '#' are skipped.
package main

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ytinirt/lpm"
)

func main() {
	var (
		flagRoutes = pflag.StringP("routes", "r", "", "routes file (prefix value per line)")
		flagName   = pflag.StringP("name", "n", "routes", "table name")
		flagStats  = pflag.Bool("stats", false, "print table statistics")
		flagDump   = pflag.Bool("dump", false, "dump the mtrie structure")
		flagDebug  = pflag.Bool("debug", false, "enable all debug channels")
	)
	pflag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	if *flagRoutes == "" {
		log.Fatal().Msg("missing --routes file")
	}

	table, err := lpm.New[string](*flagName, lpm.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("could not create table")
	}
	defer table.Destroy()

	if *flagDebug {
		if err := table.SetDebug(lpm.DebugAll, true); err != nil {
			log.Fatal().Err(err).Msg("could not enable debugging")
		}
	}

	if err := loadRoutes(table, *flagRoutes); err != nil {
		log.Fatal().Err(err).Str("file", *flagRoutes).Msg("could not load routes")
	}

	for _, arg := range pflag.Args() {
		ip, err := netip.ParseAddr(arg)
		if err != nil {
			log.Error().Err(err).Str("addr", arg).Msg("not an IP address")
			continue
		}

		val, usedDefault, ok := table.Search(addrBytes(ip))
		switch {
		case !ok:
			fmt.Printf("%-40s -> no match\n", ip)
		case usedDefault:
			fmt.Printf("%-40s -> %s (default)\n", ip, val)
		default:
			fmt.Printf("%-40s -> %s\n", ip, val)
		}
	}

	if *flagStats {
		table.FprintStatistic(os.Stdout)
	}
	if *flagDump {
		table.DumpMtrie(os.Stdout)
	}
}

// loadRoutes feeds every prefix of the routes file into the table.
func loadRoutes(table *lpm.Table[string], file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("line %d: want 'prefix value', got %q", lineno, line)
		}

		pfx, err := netip.ParsePrefix(fields[0])
		if err != nil {
			return fmt.Errorf("line %d: %w", lineno, err)
		}

		err = table.Add(addrBytes(pfx.Addr()), pfx.Bits(), fields[1])
		if err != nil {
			return fmt.Errorf("line %d: add %s: %w", lineno, pfx, err)
		}
	}

	return scanner.Err()
}

// addrBytes returns the address in network byte order.
func addrBytes(ip netip.Addr) []byte {
	if ip.Is4() {
		b := ip.As4()
		return b[:]
	}
	b := ip.As16()
	return b[:]
}
