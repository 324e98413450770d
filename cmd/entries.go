package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/irs990-cli/internal/ids"
)

// collectEntries merges EIN arguments with an optional identifier file.
// Arguments come first; duplicates keep their first position.
func collectEntries(ctx context.Context, args []string, idsFile string) ([]ids.Entry, error) {
	entries, err := ids.FromArgs(args)
	if err != nil {
		return nil, err
	}
	if idsFile != "" {
		fromFile, err := ids.Load(ctx, idsFile)
		if err != nil {
			return nil, err
		}
		entries = ids.Merge(entries, fromFile)
	}
	if len(entries) == 0 {
		return nil, eris.New("no EINs given: pass them as arguments or with --ids")
	}
	return entries, nil
}
