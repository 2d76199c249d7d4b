package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dogao/order-service/internal/httpapi"
	"dogao/order-service/internal/notify"
	"dogao/order-service/internal/scheduler"
	"dogao/order-service/internal/service"
	"dogao/order-service/internal/store"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// withService opens the store, runs fn and closes it again.
func withService(ctx context.Context, opts *RootOptions, fn func(*service.Service) error) error {
	st, err := openStore(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	svc, err := newService(opts.cfg, st, nil)
	if err != nil {
		return err
	}
	return fn(svc)
}

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (store=%s)\n", opts.cfg.StoreDriver)
			return nil
		},
	}
}

func NewSeedCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create vouchers, tickets or an edition",
	}
	cmd.AddCommand(newSeedVouchersCommand(opts))
	cmd.AddCommand(newSeedTicketsCommand(opts))
	cmd.AddCommand(newSeedEditionCommand(opts))
	return cmd
}

func newSeedVouchersCommand(opts *RootOptions) *cobra.Command {
	var prefix string
	var count int
	cmd := &cobra.Command{
		Use:   "vouchers",
		Short: "Create voucher codes PREFIX001 up to the count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc *service.Service) error {
				created, err := svc.SeedVouchers(cmd.Context(), prefix, count)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d vouchers (%d requested)\n", created, count)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "DOG", "voucher code prefix")
	cmd.Flags().IntVar(&count, "count", 100, "number of codes")
	return cmd
}

func newSeedTicketsCommand(opts *RootOptions) *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Create the four-digit tickets in [from, to]",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc *service.Service) error {
				created, err := svc.SeedTickets(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d tickets\n", created)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 1, "first ticket number")
	cmd.Flags().IntVar(&to, "to", 1000, "last ticket number")
	return cmd
}

func newSeedEditionCommand(opts *RootOptions) *cobra.Command {
	var input service.EditionInput
	var price string
	var production bool
	cmd := &cobra.Command{
		Use:   "edition",
		Short: "Create a production edition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			unitPrice, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid --price %q: %w", price, err)
			}
			input.UnitPrice = unitPrice
			return withService(cmd.Context(), opts, func(svc *service.Service) error {
				view, err := svc.CreateEdition(cmd.Context(), input)
				if err != nil {
					return err
				}
				if production {
					if view, err = svc.SetProduction(cmd.Context(), view.EditionID, true); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created edition %s (%s)\n", view.EditionID, view.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "edition name")
	cmd.Flags().StringVar(&input.ProductionDate, "date", "", "production date, YYYY-MM-DD")
	cmd.Flags().StringVar(&input.ClosingTime, "closing", "21:00", "closing time, HH:MM")
	cmd.Flags().StringVar(&price, "price", "20.00", "unit price")
	cmd.Flags().IntVar(&input.Capacity, "capacity", 1000, "hot dogs available")
	cmd.Flags().BoolVar(&input.Activate, "activate", false, "make it the active edition")
	cmd.Flags().BoolVar(&production, "production", false, "open production right away")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func NewEditionsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "editions",
		Short: "Inspect editions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List editions with their stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc *service.Service) error {
				editions, err := svc.ListEditions(cmd.Context())
				if err != nil {
					return err
				}
				return renderEditions(cmd.OutOrStdout(), editions)
			})
		},
	})
	return cmd
}

func renderEditions(w io.Writer, editions []service.EditionView) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Nome", "Data", "Fechamento", "Preço", "Capacidade", "Vendidos", "Disponível", "Ativa", "Produção")
	for _, e := range editions {
		if err := table.Append([]string{
			e.EditionID,
			e.Name,
			notify.FormatDate(e.ProductionDate),
			e.ClosingTime,
			notify.FormatBRL(e.UnitPrice),
			strconv.Itoa(e.Capacity),
			strconv.Itoa(e.Stock.Sold),
			strconv.Itoa(e.Stock.Available),
			yesNo(e.Active),
			yesNo(e.ProductionActive),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func NewTicketsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Inspect prepaid tickets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show how many tickets exist and how many are used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc *service.Service) error {
				counts, err := svc.TicketCounts(cmd.Context())
				if err != nil {
					return err
				}
				return renderTicketCounts(cmd.OutOrStdout(), counts)
			})
		},
	})
	return cmd
}

func renderTicketCounts(w io.Writer, counts store.TicketCounts) error {
	table := tablewriter.NewWriter(w)
	table.Header("Total", "Usados", "Disponíveis")
	if err := table.Append([]string{
		strconv.Itoa(counts.Total),
		strconv.Itoa(counts.Used),
		strconv.Itoa(counts.Total - counts.Used),
	}); err != nil {
		return err
	}
	return table.Render()
}

func NewJobsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Run the closing reminder and production close jobs once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), opts, func(svc *service.Service) error {
				scheduler.RunOnce(cmd.Context(), svc)
				return nil
			})
		},
	}
}

func NewHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash for ADMIN_PASSWORD_HASH",
		Long:  "Print the bcrypt hash for ADMIN_PASSWORD_HASH. Without an argument the password is read from the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := httpapi.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func yesNo(v bool) string {
	if v {
		return "sim"
	}
	return "não"
}
