package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mdouchement/padbank/internal/service"
	"github.com/mdouchement/padbank/internal/webserver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	var stored bool

	c := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a bank archive",
		Long:  "Import a bank archive from the local file system, or from the archive storage with --stored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := open(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			var data []byte
			if stored {
				data, err = a.readArchive(c.Context(), args[0])
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return errors.Wrap(err, "could not read archive")
			}

			result, err := a.service.ImportBank(c.Context(), data, service.ImportOptions{
				Filename: filepath.Base(args[0]),
				Progress: a.progress("import"),
			})
			if err != nil {
				return errors.Wrap(err, string(service.Cause(err)))
			}

			fmt.Printf("Imported %s (%s): %d pad(s), %d skipped\n", result.Bank.Name, result.Bank.ID, result.Imported, result.Skipped)
			return nil
		},
	}
	c.Flags().BoolVar(&stored, "stored", false, "Read the archive from the archive storage")
	return c
}

func exportCmd() *cobra.Command {
	var output string
	var store bool

	c := &cobra.Command{
		Use:   "export BANK_ID",
		Short: "Export a bank as a plain archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := open(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			export, err := a.service.ExportBank(c.Context(), args[0], a.progress("export"))
			if err != nil {
				return errors.Wrap(err, string(service.Cause(err)))
			}
			return a.deliver(c.Context(), export, output, store)
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "Output directory or file (default archive name in the working directory)")
	c.Flags().BoolVar(&store, "store", false, "Write the archive to the archive storage")
	return c
}

func adminExportCmd() *cobra.Command {
	var output string
	var store bool
	var options service.AdminExportOptions

	c := &cobra.Command{
		Use:   "admin-export BANK_ID",
		Short: "Export a bank as a protected admin archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := open(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			export, err := a.service.ExportAdminBank(c.Context(), args[0], options, a.progress("admin export"))
			if err != nil {
				return errors.Wrap(err, string(service.Cause(err)))
			}
			if export.BankID != "" {
				fmt.Println("Registered admin bank", export.BankID)
			}
			return a.deliver(c.Context(), export, output, store)
		},
	}
	c.Flags().BoolVar(&options.AddToDatabase, "database", false, "Register the bank and seal it with its registry key")
	c.Flags().BoolVar(&options.AllowExport, "allow-export", false, "Leave the archive plain and re-exportable")
	c.Flags().StringVar(&options.Title, "title", "", "Bank title (default bank name)")
	c.Flags().StringVar(&options.Description, "description", "", "Bank description")
	c.Flags().StringVar(&options.Color, "color", "", "Bank color (default bank color)")
	c.Flags().StringVarP(&output, "output", "o", "", "Output directory or file (default archive name in the working directory)")
	c.Flags().BoolVar(&store, "store", false, "Write the archive to the archive storage")
	return c
}

//
//
//

// container is the archive storage container of the operator.
func (a *app) container() string {
	if a.config.User != "" {
		return a.config.User
	}
	return webserver.PublicContainer
}

func (a *app) readArchive(ctx context.Context, name string) ([]byte, error) {
	r, err := a.storage.Reader(ctx, a.container(), name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

func (a *app) deliver(ctx context.Context, export *service.Export, output string, store bool) error {
	if store {
		w, err := a.storage.Writer(ctx, a.container(), export.Filename)
		if err != nil {
			return err
		}
		if _, err = w.Write(export.Data); err != nil {
			w.Close()
			return errors.Wrap(err, "could not write archive")
		}
		if err = w.Close(); err != nil {
			return errors.Wrap(err, "could not write archive")
		}

		fmt.Printf("Stored %s in %s (%s)\n", export.Filename, a.storage.Name(), humanBytes(int64(len(export.Data))))
		return nil
	}

	//

	path := export.Filename
	if output != "" {
		path = output
		if info, err := os.Stat(output); err == nil && info.IsDir() {
			path = filepath.Join(output, export.Filename)
		}
	}

	if err := os.WriteFile(path, export.Data, 0644); err != nil {
		return errors.Wrap(err, "could not write archive")
	}

	fmt.Printf("Wrote %s (%s, %d trimmed, %d fallback(s), %d reused)\n", path, humanBytes(int64(len(export.Data))), export.Trimmed, export.Fallbacks, export.Reused)
	return nil
}

func (a *app) progress(step string) service.Progress {
	return func(percent int) {
		a.log.Debugf("%s: %d%%", step, percent)
	}
}
