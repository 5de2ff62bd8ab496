package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/geouploader/geosheet"
	"github.com/geouploader/geosheet/api"
	"github.com/geouploader/geosheet/session"
	"github.com/geouploader/geosheet/store"
)

type globalFlags struct {
	verbose    bool
	configPath string
	sheet      string
	cfg        *geosheet.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "geosheet",
		Short:        "Structural edits for GEO metadata workbooks",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.verbose {
				log.SetLevel(log.DebugLevel)
			}
			log.SetFormatter(&log.TextFormatter{
				FullTimestamp: true,
			})
			cfg, err := geosheet.LoadConfig(g.configPath)
			if err != nil {
				return err
			}
			g.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Verbose logging")
	root.PersistentFlags().StringVar(&g.configPath, "config", "geosheet.toml", "Configuration file")
	root.PersistentFlags().StringVar(&g.sheet, "sheet", "", "Worksheet to edit (default: the template's metadata sheet)")

	root.AddCommand(
		insertRowCmd(g),
		removeRowCmd(g),
		insertColumnCmd(g),
		removeColumnCmd(g),
		insertRowsCmd(g),
		reapplyDropdownsCmd(g),
		describeCmd(g),
		validateCmd(g),
		checksumsCmd(g),
		sessionCmd(g),
		serveCmd(g),
	)
	return root
}

func (g *globalFlags) options() []geosheet.Option {
	return []geosheet.Option{
		geosheet.WithTemplate(g.cfg.Template),
		geosheet.WithSheet(g.sheet),
		geosheet.WithLogger(log.StandardLogger()),
		geosheet.WithLockTimeout(g.cfg.LockTimeout()),
	}
}

func (g *globalFlags) editor(path string) *geosheet.Editor {
	return geosheet.NewEditor(path, g.options()...)
}

func intArg(args []string, i int, name string) (int, error) {
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, args[i])
	}
	return n, nil
}

func insertRowCmd(g *globalFlags) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "insert-row WORKBOOK ROW",
		Short: "Insert one row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := intArg(args, 1, "ROW")
			if err != nil {
				return err
			}
			k, err := geosheet.ParseRowKind(kind)
			if err != nil {
				return err
			}
			return g.editor(args[0]).InsertRow(cmd.Context(), row, k)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "plain", "Row kind: plain, contributor, step, format, supplementary")
	return cmd
}

func removeRowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-row WORKBOOK ROW",
		Short: "Delete one row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := intArg(args, 1, "ROW")
			if err != nil {
				return err
			}
			return g.editor(args[0]).RemoveRow(cmd.Context(), row)
		},
	}
}

func insertColumnCmd(g *globalFlags) *cobra.Command {
	var headerRow int
	var fileColumn bool
	cmd := &cobra.Command{
		Use:   "insert-column WORKBOOK COL",
		Short: "Insert one column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := intArg(args, 1, "COL")
			if err != nil {
				return err
			}
			if headerRow == 0 {
				headerRow = g.cfg.Template.SamplesStartRow
			}
			return g.editor(args[0]).InsertColumn(cmd.Context(), col, headerRow, fileColumn)
		},
	}
	cmd.Flags().IntVar(&headerRow, "header-row", 0, "Header row copied for file columns (default: the sample header row)")
	cmd.Flags().BoolVar(&fileColumn, "file-column", false, "Copy the header from the column to the left")
	return cmd
}

func removeColumnCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-column WORKBOOK COL",
		Short: "Delete one column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			col, err := intArg(args, 1, "COL")
			if err != nil {
				return err
			}
			return g.editor(args[0]).RemoveColumn(cmd.Context(), col)
		},
	}
}

func insertRowsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "insert-rows WORKBOOK ROW COUNT",
		Short: "Insert a block of rows and re-create the sample dropdowns",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := intArg(args, 1, "ROW")
			if err != nil {
				return err
			}
			count, err := intArg(args, 2, "COUNT")
			if err != nil {
				return err
			}
			return g.editor(args[0]).InsertRows(cmd.Context(), row, count)
		},
	}
}

func reapplyDropdownsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reapply-dropdowns WORKBOOK",
		Short: "Re-create the sample dropdowns at their template ranges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.editor(args[0]).ReapplyDropdowns(cmd.Context())
		},
	}
}

// loadLayout reads a JSON layout file; "" yields the template defaults.
func loadLayout(path string) (geosheet.LayoutState, error) {
	l := geosheet.DefaultLayout()
	if path == "" {
		return l, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := json.Unmarshal(b, &l); err != nil {
		return l, fmt.Errorf("parse layout %s: %w", path, err)
	}
	return l, nil
}

func describeCmd(g *globalFlags) *cobra.Command {
	var layoutPath string
	cmd := &cobra.Command{
		Use:   "describe WORKBOOK",
		Short: "Summarize sections, validations, conditional formats and merges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLayout(layoutPath)
			if err != nil {
				return err
			}
			out, err := geosheet.Describe(args[0], l, g.options()...)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&layoutPath, "layout", "", "JSON layout state (default: a fresh template)")
	return cmd
}

func validateCmd(g *globalFlags) *cobra.Command {
	var layoutPath string
	cmd := &cobra.Command{
		Use:   "validate WORKBOOK",
		Short: "Check a workbook against a layout state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := loadLayout(layoutPath)
			if err != nil {
				return err
			}
			issues, err := geosheet.Validate(args[0], l, g.options()...)
			if err != nil {
				return err
			}
			failed := false
			for _, i := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), i.String())
				failed = failed || i.Severity == geosheet.SeverityError
			}
			if failed {
				return fmt.Errorf("%s: validation failed", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&layoutPath, "layout", "", "JSON layout state (default: a fresh template)")
	return cmd
}

func checksumsCmd(g *globalFlags) *cobra.Command {
	var out, workbook string
	cmd := &cobra.Command{
		Use:   "checksums MANIFEST",
		Short: "Compute md5 checksums of a manifest's files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := geosheet.LoadManifest(args[0])
			if err != nil {
				return err
			}
			entries, err := geosheet.ComputeChecksums(cmd.Context(), m, g.cfg.ChecksumWorkers, log.StandardLogger())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := geosheet.WriteChecksumTSV(w, entries); err != nil {
				return err
			}
			if workbook == "" {
				return nil
			}
			return g.editor(workbook).Update(cmd.Context(), func(f *excelize.File) error {
				return geosheet.FillChecksums(f, g.cfg.Template, entries)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write the TSV table here instead of stdout")
	cmd.Flags().StringVar(&workbook, "workbook", "", "Also fill the checksum sheet of this workbook")
	return cmd
}

func openService(g *globalFlags) (*session.Service, *store.Store, error) {
	st, err := store.Open(g.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return session.New(st, g.cfg, log.StandardLogger()), st, nil
}

func sessionCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage upload sessions",
	}

	var title string
	create := &cobra.Command{
		Use:   "create MANIFEST",
		Short: "Create a session workbook from a sample manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := geosheet.LoadManifest(args[0])
			if err != nil {
				return err
			}
			svc, st, err := openService(g)
			if err != nil {
				return err
			}
			defer st.Close()
			sess, err := svc.Create(cmd.Context(), title, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", sess.ID, sess.Title, sess.WorkbookPath)
			return nil
		},
	}
	create.Flags().StringVar(&title, "title", "", "Session title (default: the manifest's session)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, st, err := openService(g)
			if err != nil {
				return err
			}
			defer st.Close()
			sessions, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", s.ID, s.Title, s.WorkbookPath)
			}
			return nil
		},
	}

	resize := &cobra.Command{
		Use:   "resize ID ACTION",
		Short: "Add or remove a contributor, supplementary file, step or format row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := intArg(args, 0, "ID")
			if err != nil {
				return err
			}
			svc, st, err := openService(g)
			if err != nil {
				return err
			}
			defer st.Close()
			sess, err := svc.Resize(cmd.Context(), uint(id), geosheet.Action(args[1]))
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(sess.Layout)
		},
	}

	cmd.AddCommand(create, list, resize)
	return cmd
}

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, st, err := openService(g)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := &http.Server{
				Addr:              g.cfg.Listen,
				Handler:           api.GetRouter(svc),
				ReadHeaderTimeout: 10 * time.Second,
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdown)
			}()

			log.WithField("listen", g.cfg.Listen).Info("serving")
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}
