package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
	"showroom-popup-builder/internal/templates"
	"showroom-popup-builder/pkg/fsutils"
)

func (c *cli) target(object string) model.ObjectTarget {
	return model.ObjectTarget{ID: strings.TrimSpace(object), SpaceSlug: c.cfg.Popups.Space}
}

func (c *cli) templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the available template types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tNAME\tDESCRIPTION")
			for _, d := range deps.Registry.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Name, d.Description)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) defaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults <type>",
		Short: "Print the default configuration of a template type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			t, err := model.ParseTemplateType(args[0])
			if err != nil {
				return err
			}
			cfg, ok := deps.Registry.DefaultConfig(t)
			if !ok {
				return fmt.Errorf("%w: %s", model.ErrUnknownTemplateType, t)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored popups of the space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			entries, err := deps.Catalog.List(cmd.Context(), c.cfg.Popups.Space)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No popups found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OBJECT\tTYPE\tUPDATED\tPUBLISHED")
			for _, e := range entries {
				updated := "-"
				if !e.UpdatedAt.IsZero() {
					updated = e.UpdatedAt.Format(time.DateTime)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", e.Target.ID, e.TemplateType, updated, e.Published)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) generateCmd() *cobra.Command {
	var part string
	cmd := &cobra.Command{
		Use:   "generate <object>",
		Short: "Regenerate a popup from its stored configuration and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			_, a, err := deps.Catalog.Generate(cmd.Context(), c.target(args[0]))
			if err != nil {
				return err
			}
			var out string
			switch part {
			case "js":
				out = a.JS
			case "html":
				out = a.HTML
			case "css":
				out = a.CSS
			case "document":
				out = templates.Document(args[0], a)
			default:
				return fmt.Errorf("unknown part %q (js, html, css or document)", part)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&part, "part", "js", "what to print: js, html, css or document")
	return cmd
}

func (c *cli) previewCmd() *cobra.Command {
	var noOpen bool
	cmd := &cobra.Command{
		Use:   "preview <object>",
		Short: "Open a generated popup in the default browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			target := c.target(args[0])
			_, a, err := deps.Catalog.Generate(cmd.Context(), target)
			if err != nil {
				return err
			}

			tempFile, err := os.CreateTemp("", fmt.Sprintf("popup-preview-%s-*.html", tempSafe(target.ID)))
			if err != nil {
				return fmt.Errorf("creating temporary preview file: %w", err)
			}
			defer tempFile.Close()
			if _, err := tempFile.WriteString(templates.Document(target.ID, a)); err != nil {
				return fmt.Errorf("writing temporary preview file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Preview HTML saved to: %s\n", tempFile.Name())

			if noOpen {
				return nil
			}
			if err := c.openBrowser(tempFile.Name()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to open preview in browser: %v\n", err)
				fmt.Fprintln(cmd.OutOrStdout(), "Please open the file manually in your browser.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "only write the preview file")
	return cmd
}

// tempSafe keeps object names usable inside a temp file pattern.
func tempSafe(name string) string {
	if s, err := fsutils.SafeSegment(name); err == nil {
		return s
	}
	return "object"
}

func (c *cli) publishCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "publish [object]",
		Short: "Regenerate and publish one popup, or every popup with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give an object or --all")
			}
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			if all {
				n, err := deps.Catalog.PublishAll(cmd.Context(), c.cfg.Popups.Space)
				fmt.Fprintf(cmd.OutOrStdout(), "Published %d popup(s).\n", n)
				return err
			}
			p, err := deps.Catalog.Publish(cmd.Context(), c.target(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n", p.Script)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "publish every stored popup of the space")
	return cmd
}

// importCmd stores a configuration file as the popup of an object, the same
// way the editor saves it.
func (c *cli) importCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "import <object> <config.json>",
		Short: "Save a template configuration file as an object's popup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			t, err := model.ParseTemplateType(typ)
			if err != nil {
				return err
			}
			def, ok := deps.Registry.Get(t)
			if !ok {
				return fmt.Errorf("%w: %s", model.ErrUnknownTemplateType, t)
			}
			data, err := fsutils.ReadFile(args[1])
			if err != nil {
				return err
			}
			cfg, err := model.DecodeConfig(t, string(data))
			if err != nil {
				return err
			}
			target := c.target(args[0])
			a, err := def.GenerateArtifact(target.ID, cfg, time.Now())
			if err != nil {
				return err
			}
			raw, err := model.EncodeConfig(cfg)
			if err != nil {
				return err
			}
			if err := deps.Gateway.Save(cmd.Context(), storage.SaveRequest{
				Target:         target,
				TemplateType:   t,
				TemplateConfig: raw,
				Artifact:       a,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s popup for %s/%s.\n", t, target.SpaceSlug, target.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", string(model.DefaultTemplateType), "template type of the configuration")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <object>",
		Short: "Show the past saves of an object (sql storage only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			sqlStore, ok := deps.Store.(*storage.SQLStore)
			if !ok {
				return fmt.Errorf("history needs the sql storage backend, not %q", c.cfg.Storage.Backend)
			}
			revs, err := sqlStore.Revisions(cmd.Context(), c.target(args[0]), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REVISION\tTYPE\tSAVED")
			for _, r := range revs {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ID, r.TemplateType, r.SavedAt.Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of revisions")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	var force, yes bool
	cmd := &cobra.Command{
		Use:   "delete <object>...",
		Short: "Archive popups, or delete them for good with --force",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			if force && !yes {
				prompt := fmt.Sprintf("Permanently delete %d popup(s) and their stored configuration?", len(args))
				if !c.askForConfirmation(cmd, prompt) {
					fmt.Fprintln(cmd.OutOrStdout(), "Operation cancelled.")
					return nil
				}
			}
			var errs []error
			for _, object := range args {
				if err := deps.Catalog.Delete(cmd.Context(), c.target(object), force); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", object, err))
					continue
				}
				if force {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", object)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", object)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete files and stored configuration immediately")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (c *cli) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <object>",
		Short: "Restore an archived popup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			if err := deps.Catalog.Restore(c.target(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) archivedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archived",
		Short: "List archived popups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			targets, err := deps.Catalog.Archived()
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No archived popups.")
				return nil
			}
			for _, t := range targets {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\n", t.SpaceSlug, t.ID)
			}
			return nil
		},
	}
}

func (c *cli) purgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently delete every archived popup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			if !yes && !c.askForConfirmation(cmd, "Permanently delete all archived popups?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Operation cancelled.")
				return nil
			}
			n, err := deps.Catalog.PurgeArchived()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d archived popup(s).\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Copy the published popups of the space into dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.load(cmd)
			if err != nil {
				return err
			}
			dst, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if err := deps.Catalog.Export(c.cfg.Popups.Space, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", c.cfg.Popups.Space, dst)
			return nil
		},
	}
}
