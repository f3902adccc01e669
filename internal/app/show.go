package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"fiatsend/internal/ledger"
	"fiatsend/internal/service"
)

func printQuote(w io.Writer, q service.Quote) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeQuote(tw, q)
	return tw.Flush()
}

func printReceipt(w io.Writer, r service.Receipt) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeQuote(tw, r.Quote)
	fmt.Fprintf(tw, "From\t%s\n", r.Source)
	fmt.Fprintf(tw, "To\t%s\n", r.Destination)
	fmt.Fprintf(tw, "Reference\t%s\n", r.Reference)
	if r.CommittedAt.IsZero() {
		fmt.Fprintln(tw, "Status\tpending")
	} else {
		fmt.Fprintf(tw, "Committed\t%s\n", r.CommittedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func writeQuote(tw *tabwriter.Writer, q service.Quote) {
	fmt.Fprintf(tw, "Feed\t%s\n", q.Feed.Hex())
	fmt.Fprintf(tw, "Mode\t%s\n", q.Mode)
	fmt.Fprintf(tw, "Price\t%s USD\n", q.Observation.Price.Decimal().String())
	fmt.Fprintf(tw, "Observed\t%s (%s old)\n", q.Observation.ObservedAt.UTC().Format(time.RFC3339), q.Age.Truncate(time.Second))
	fmt.Fprintf(tw, "Fiat\t%d USD\n", q.FiatAmount)
	fmt.Fprintf(tw, "Amount\t%s (%d base units)\n", q.Amount().String(), q.AmountBaseUnits)
}

func printTransfers(w io.Writer, transfers []ledger.Transfer) error {
	if len(transfers) == 0 {
		_, err := fmt.Fprintln(w, "no transfers found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Time (UTC)\tID\tFrom\tTo\tBase units")
	for _, t := range transfers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.ID,
			sanitizeInline(string(t.Source)),
			sanitizeInline(string(t.Destination)),
			t.AmountBaseUnits,
		)
	}
	return tw.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
