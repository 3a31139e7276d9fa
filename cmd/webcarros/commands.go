package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	carsvc "webcarros-backend/internal/application/cars"
	"webcarros-backend/internal/application/views"
	"webcarros-backend/internal/domain"
	"webcarros-backend/internal/editor"

	"github.com/spf13/cobra"
)

func (a *cli) registerCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.Register(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Welcome, %s! You are signed in as %s.\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 6 characters")
	return cmd
}

func (a *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s (%s).\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func (a *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		},
	}
}

func (a *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.Restore(cmd.Context())
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(a.out, "Not signed in.")
				return nil
			}
			fmt.Fprintf(a.out, "%s <%s> uid=%s\n", u.Name, u.Email, u.UID)
			return nil
		},
	}
}

func (a *cli) profileCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Change your display name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			u, err := a.client.UpdateProfile(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Display name is now %s.\n", u.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	return cmd
}

func (a *cli) printCards(cards []views.Card) {
	if len(cards) == 0 {
		fmt.Fprintln(a.out, "No cars found.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tYEAR\tKM\tPRICE\tCITY\tPHOTOS")
	for _, c := range cards {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n", c.ID, c.Name, c.Year, c.Km, c.PriceLabel, c.City, len(c.Images))
	}
	_ = w.Flush()
}

func (a *cli) printDetail(d *views.Detail) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", d.ID)
	fmt.Fprintf(w, "Name\t%s %s\n", d.Name, d.Model)
	fmt.Fprintf(w, "Year\t%s\n", d.Year)
	fmt.Fprintf(w, "Km\t%s\n", d.Km)
	fmt.Fprintf(w, "Price\t%s\n", d.PriceLabel)
	fmt.Fprintf(w, "City\t%s\n", d.City)
	fmt.Fprintf(w, "Seller\t%s\n", d.Owner)
	fmt.Fprintf(w, "WhatsApp\t%s\n", d.ContactURL)
	fmt.Fprintf(w, "Listed\t%s\n", d.Created.Format("02/01/2006"))
	_ = w.Flush()
	if d.Description != "" {
		fmt.Fprintf(a.out, "\n%s\n", d.Description)
	}
	for _, img := range d.Images {
		fmt.Fprintf(a.out, "  [%s] %s\n", img.UID, img.URL)
	}
}

func (a *cli) browseCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List cars for sale, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.client.Browse(cmd.Context(), search)
			if err != nil {
				return err
			}
			a.printCards(page.Cards)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "only names starting with this")
	return cmd
}

func (a *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one car",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.client.Car(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.printDetail(d)
			return nil
		},
	}
}

func (a *cli) mineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your cars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			page, err := a.client.MyCars(cmd.Context())
			if err != nil {
				return err
			}
			a.printCards(page.Cards)
			return nil
		},
	}
}

type listingFlags struct {
	in     carsvc.Input
	price  string
	images []string
}

func (f *listingFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.in.Name, "name", "", "car name, e.g. civic")
	cmd.Flags().StringVar(&f.in.Model, "model", "", "model/version")
	cmd.Flags().StringVar(&f.in.Year, "year", "", "year, e.g. 2019/2020")
	cmd.Flags().StringVar(&f.in.Km, "km", "", "mileage")
	cmd.Flags().StringVar(&f.price, "price", "", "asking price")
	cmd.Flags().StringVar(&f.in.City, "city", "", "city")
	cmd.Flags().StringVar(&f.in.WhatsApp, "whatsapp", "", "contact number, 11 or 12 digits")
	cmd.Flags().StringVar(&f.in.Description, "description", "", "free text")
	cmd.Flags().StringArrayVar(&f.images, "image", nil, "photo to upload, jpeg or png (repeatable)")
}

// merge overlays the flags the user actually set onto base.
func (f *listingFlags) merge(cmd *cobra.Command, base carsvc.Input) carsvc.Input {
	set := func(flag string, dst *string, v string) {
		if cmd.Flags().Changed(flag) {
			*dst = v
		}
	}
	set("name", &base.Name, f.in.Name)
	set("model", &base.Model, f.in.Model)
	set("year", &base.Year, f.in.Year)
	set("km", &base.Km, f.in.Km)
	set("city", &base.City, f.in.City)
	set("whatsapp", &base.WhatsApp, f.in.WhatsApp)
	set("description", &base.Description, f.in.Description)
	if cmd.Flags().Changed("price") {
		base.Price = domain.Price(f.price)
	}
	return base
}

// uploadAll starts every upload at once and waits for all of them.
func (a *cli) uploadAll(ctx context.Context, ed *editor.Editor, paths []string) error {
	tasks := make([]*editor.Task, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		tasks = append(tasks, ed.UploadAsync(filepath.Base(p), data))
	}
	var failed error
	for i, t := range tasks {
		img, err := t.Wait(ctx)
		if err != nil {
			fmt.Fprintf(a.out, "upload %s failed: %s\n", paths[i], describe(err))
			if failed == nil {
				failed = fmt.Errorf("upload %s: %w", paths[i], err)
			}
			continue
		}
		fmt.Fprintf(a.out, "uploaded %s -> %s\n", paths[i], img.UID)
	}
	return failed
}

func (a *cli) newCmd() *cobra.Command {
	var f listingFlags
	cmd := &cobra.Command{
		Use:   "new",
		Short: "List a car for sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.requireUser(ctx); err != nil {
				return err
			}
			ed := editor.New(a.client)
			defer ed.Close()

			if errs := ed.SetFields(f.merge(cmd, carsvc.Input{})); errs != nil {
				return errs
			}
			if err := a.uploadAll(ctx, ed, f.images); err != nil {
				return err
			}
			d, err := ed.Submit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Listed %s (%s).\n", d.Name, d.ID)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *cli) editCmd() *cobra.Command {
	var (
		f      listingFlags
		remove []string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change one of your cars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.requireUser(ctx); err != nil {
				return err
			}
			current, err := a.client.MyCar(ctx, args[0])
			if err != nil {
				return err
			}
			ed := editor.Edit(a.client, current)
			defer ed.Close()

			if errs := ed.SetFields(f.merge(cmd, ed.Fields())); errs != nil {
				return errs
			}
			for _, uid := range remove {
				if err := ed.RemoveImage(ctx, uid); err != nil {
					return fmt.Errorf("remove image %s: %w", uid, err)
				}
			}
			if err := a.uploadAll(ctx, ed, f.images); err != nil {
				return err
			}
			d, err := ed.Submit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %s (%s), %d photos.\n", d.Name, d.ID, len(d.Images))
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringArrayVar(&remove, "remove-image", nil, "image uid to delete (repeatable)")
	return cmd
}

func (a *cli) rmImageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-image <id> <uid>",
		Short: "Delete one photo of your car",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			d, err := a.client.RemoveCarImage(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed. %s has %d photos left.\n", d.Name, len(d.Images))
			return nil
		},
	}
}

func (a *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your cars and its photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			if err := a.client.DeleteCar(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Deleted.")
			return nil
		},
	}
}

func (a *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show what you did with your listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			evs, err := a.client.Events(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			for _, ev := range evs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ev.CreatedAt.Format("2006-01-02 15:04"), ev.EventType, ev.CarID)
			}
			return w.Flush()
		},
	}
}
