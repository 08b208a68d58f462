// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

// Package lpm provides a longest-prefix-match lookup table for IP-style
// addresses up to 128 bits wide.
//
// The table couples two tries: a 1-bit binary trie (btrie) that records
// the authoritative prefix→value bindings and their containment
// relationships, and a fixed-stride 8-bit multibit trie (mtrie) that
// serves lookups in at most ⌈W/8⌉ memory references for an address
// width W. Writers mutate both structures in a coordinated fashion via
// controlled prefix expansion; readers touch only the mtrie, the
// zero-route value held by the btrie root, and the default-data slot.
//
// The table is single-writer. Readers may run concurrently with the
// writer: child blocks are hooked into the mtrie only after they are
// fully initialized, and entry values are single pointer stores.
//
// Addresses are big-endian (network order) byte slices. The table never
// parses IPs and never owns caller values.
package lpm
