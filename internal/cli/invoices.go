package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crmdesk/crmdesk/internal/invoices"
	"github.com/crmdesk/crmdesk/internal/view"
)

func (rt *runtime) invoicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Inspect and reconcile invoices",
	}
	cmd.AddCommand(rt.invoiceShowCommand(), rt.invoiceReconcileCommand())
	return cmd
}

func (rt *runtime) invoiceShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print an invoice with its payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			detail, err := rt.invoiceService().Load(cmd.Context(), rt.creds, args[0])
			if err != nil {
				return explain(err)
			}
			rt.printDetail(detail)
			return nil
		},
	}
}

func (rt *runtime) invoiceReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile ID",
		Short: "Mark the invoice Paid when its payments cover the amount due",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			service := rt.invoiceService()
			detail, err := service.Load(cmd.Context(), rt.creds, args[0])
			if err != nil {
				return explain(err)
			}
			result, err := service.Reconcile(cmd.Context(), rt.creds, args[0], detail)
			switch {
			case errors.Is(err, invoices.ErrRefresh) && result == invoices.ResultPaid:
				fmt.Fprintf(rt.out, "Invoice %s marked Paid, but it could not be read back.\n", args[0])
				return nil
			case err != nil:
				return explain(err)
			}
			switch result {
			case invoices.ResultPaid:
				fmt.Fprintf(rt.out, "Invoice %s marked Paid.\n", args[0])
			case invoices.ResultConflict:
				fmt.Fprintf(rt.out, "Invoice %s was changed by someone else; now %s.\n", args[0], detail.Invoice.Status)
			default:
				if !detail.Invoice.AmountDue.Valid {
					fmt.Fprintf(rt.out, "Invoice %s unchanged (%s, amount due unknown).\n", args[0], detail.Invoice.Status)
					return nil
				}
				fmt.Fprintf(rt.out, "Invoice %s unchanged (%s, paid %s of %s).\n", args[0], detail.Invoice.Status,
					view.Money(detail.TotalPaid()), view.Money(detail.Invoice.AmountDue))
			}
			return nil
		},
	}
}

func (rt *runtime) printDetail(d *invoices.Detail) {
	tw := tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
	inv := d.Invoice
	fmt.Fprintf(tw, "Invoice\t%s\n", inv.InvoiceNumber)
	fmt.Fprintf(tw, "Status\t%s\n", inv.Status)
	fmt.Fprintf(tw, "Customer\t%s\n", inv.CustomerID)
	if inv.DealID != "" {
		fmt.Fprintf(tw, "Deal\t%s\n", inv.DealID)
	}
	fmt.Fprintf(tw, "Issued\t%s\n", view.FormatDate(inv.IssueDate))
	fmt.Fprintf(tw, "Due\t%s\n", view.FormatDate(inv.DueDate))
	fmt.Fprintf(tw, "Amount due\t%s\n", view.Money(inv.AmountDue))
	fmt.Fprintf(tw, "Total paid\t%s\n", view.Money(d.TotalPaid()))
	_ = tw.Flush()

	if len(d.Payments) == 0 {
		fmt.Fprintln(rt.out, "\nNo payments recorded.")
		return
	}
	fmt.Fprintln(rt.out)
	tw = tabwriter.NewWriter(rt.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tAMOUNT\tMETHOD\tTRANSACTION")
	for _, p := range d.Payments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", view.FormatDate(p.PaymentDate), view.Money(p.AmountPaid), p.PaymentMethod, p.TransactionID)
	}
	_ = tw.Flush()
}
