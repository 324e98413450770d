package ids

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// StreamCSV reads CSV rows and sends them to a channel, trimming whitespace
// from every field. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.Comment = '#'
		reader.FieldsPerRecord = -1 // allow variable fields

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ids: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ids: read csv row")
				return
			}

			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ids: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV reads "ein[,label]" rows. Rows whose first cell is not an EIN, such
// as a header, are skipped.
func ReadCSV(ctx context.Context, r io.Reader) ([]Entry, error) {
	rowCh, errCh := StreamCSV(ctx, r)

	var entries []Entry
	for row := range rowCh {
		if e, ok := fromCells(row); ok {
			entries = append(entries, e)
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return entries, nil
}
