// Package main prints a bcrypt hash of a password. ProjectHub stores only
// password hashes, so this is how an operator seeds the first admin account
// directly in the users table before anyone can register:
//
//	hash -cost 12 'S3cret-pass1'
//	echo 'S3cret-pass1' | hash
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/projecthub/projecthub/internal/auth"
)

func main() {
	cost := flag.Int("cost", auth.BcryptCost, "bcrypt work factor")
	flag.Parse()

	password := flag.Arg(0)
	if password == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "usage: hash [-cost N] <password>  (or pass it on stdin)")
			os.Exit(2)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if err := auth.ValidatePassword(password); err != nil {
		fmt.Fprintf(os.Stderr, "weak password: %v\n", err)
		os.Exit(1)
	}
	hash, err := auth.HashPasswordWithCost(password, *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
