// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// ErrAborted is returned when the user declines an interactive confirmation.
var ErrAborted = errors.New("aborted")

// Confirm prints the prompt to the context's stderr and reads a single
// line of input. Only "y" or "yes" (case-insensitive) confirm; anything
// else, including EOF, returns ErrAborted.
func Confirm(ctx *Context, prompt string) error {
	fmt.Fprintf(ctx.Stderr, "%s (y/N) ", prompt)
	scanner := bufio.NewScanner(ctx.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return errors.Trace(err)
		}
		return ErrAborted
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return nil
	}
	return ErrAborted
}
