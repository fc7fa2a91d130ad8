// SPDX-License-Identifier: MPL-2.0

// Package pkgdecl extracts the declared package of a generated source file.
//
// Only a line consisting entirely of a package statement is recognized:
//
//	  package com.example.foo ;
//
// A declaration sharing its line with anything else (code, a trailing
// comment) does not count. The first recognized line wins.
package pkgdecl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxLineSize bounds a single scanned line. Generated parsers embed long
// serialized ATN strings, so the bufio default of 64 KiB is too small.
const maxLineSize = 1 << 20

var declRe = regexp.MustCompile(`^\s*package\s+([a-zA-Z]+[a-zA-Z\d._]*)\s*;\s*$`)

// Extract opens path and returns its declared package, or defaultPkg when
// no line declares one.
func Extract(path, defaultPkg string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open generated file: %w", err)
	}
	defer f.Close()

	pkg, err := ExtractReader(f, defaultPkg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return pkg, nil
}

// ExtractReader scans r line by line and stops at the first full-line
// package declaration.
func ExtractReader(r io.Reader, defaultPkg string) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if m := declRe.FindStringSubmatch(sc.Text()); m != nil {
			return m[1], nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("scan generated file: %w", err)
	}
	return defaultPkg, nil
}

// ToPath turns a dotted package into a relative directory path.
// The empty package maps to the empty path.
func ToPath(pkg string) string {
	if pkg == "" {
		return ""
	}
	return filepath.FromSlash(strings.ReplaceAll(pkg, ".", "/"))
}
