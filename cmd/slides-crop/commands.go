package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/slides-crop/internal/utils"
	"github.com/menta2k/slides-crop/pkg/batch"
	"github.com/menta2k/slides-crop/pkg/geometry"
	"github.com/menta2k/slides-crop/pkg/project"
	"github.com/menta2k/slides-crop/pkg/types"
)

func parseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size must be WIDTHxHEIGHT, got %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width %q", w)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height %q", h)
	}
	return width, height, nil
}

func parseInts(args ...string) ([]int, error) {
	out := make([]int, len(args))
	for i, s := range args {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", s)
		}
		out[i] = v
	}
	return out, nil
}

func (a *app) progress(verb string) batch.ProgressFunc {
	return func(e batch.Event) {
		switch {
		case e.Skipped:
			a.logger.Debug(verb+" skipped", "slide", e.Index+1, "done", e.Done, "total", e.Total)
		case e.Err != nil:
			a.logger.Warn(verb+" failed", "slide", e.Index+1, "done", e.Done, "total", e.Total, "error", e.Err)
		default:
			a.logger.Info(verb, "slide", e.Index+1, "done", e.Done, "total", e.Total)
		}
	}
}

func newNewCmd(a *app) *cobra.Command {
	var out, size string
	var target int

	cmd := &cobra.Command{
		Use:   "new NAME [IMAGE|DIR...]",
		Short: "Create a project file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := a.cfg.Selection
			width, height := sel.Width, sel.Height
			if size != "" {
				var err error
				if width, height, err = parseSize(size); err != nil {
					return err
				}
			}
			if target == 0 {
				target = sel.Target
			}

			if _, err := a.ws.NewProjectWithDefaults(args[0], target, width, height); err != nil {
				return err
			}
			if len(args) > 1 {
				if _, err := a.ws.AddSlides(args[1:]...); err != nil {
					return err
				}
			}

			if out == "" {
				out = utils.ProjectFilename(".", args[0], project.Extension)
			}
			if err := a.ws.SaveAs(out); err != nil {
				return err
			}
			a.logger.Info("wrote", "path", a.ws.Project().Path())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "project file (default NAME.scp)")
	cmd.Flags().StringVar(&size, "size", "", "default selection size WIDTHxHEIGHT")
	cmd.Flags().IntVar(&target, "target", 0, "selections expected per slide")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add PROJECT IMAGE|DIR...",
		Short: "Append slides to a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(args[0])
			if err != nil {
				return err
			}
			added, err := a.ws.AddSlides(args[1:]...)
			if err != nil {
				return err
			}
			first := p.Len() - len(added)
			for k, s := range added {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%dx%d\n", first+k+1, s.FileName, s.Width, s.Height)
			}
			return a.save(p)
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info PROJECT",
		Short: "Show a project's slides and selections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.ws.OpenProject(args[0])
			if err != nil && p == nil {
				return err
			}
			w := cmd.OutOrStdout()
			dw, dh := p.DefaultSize()
			fmt.Fprintf(w, "name:       %s\n", p.Name())
			fmt.Fprintf(w, "slides:     %d (current %d)\n", p.Len(), p.WorkIndex())
			fmt.Fprintf(w, "selections: %d (target %d per slide, default %dx%d)\n", p.SelectionCount(), p.SelectionTarget(), dw, dh)

			for i, s := range p.Slides() {
				status := ""
				if info, err := os.Stat(s.Path); err != nil {
					status = "MISSING"
				} else {
					status = utils.FormatFileSize(info.Size())
					if err := s.LoadDimensions(a.ws.Codec()); err == nil {
						status += fmt.Sprintf(", %dx%d", s.Width, s.Height)
					}
				}
				fmt.Fprintf(w, "%3d  %s (%s)\n", i+1, s.Path, status)
				for j, sel := range s.Selections() {
					fmt.Fprintf(w, "       #%d center %d,%d size %dx%d\n", j+1, sel.Center.X, sel.Center.Y, sel.Width, sel.Height)
				}
			}
			return nil
		},
	}
}

// slideArg converts a 1-based slide number and loads the slide dimensions so
// that new selections are clamped.
func (a *app) slideArg(p *project.Project, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("not a slide number: %q", arg)
	}
	s, err := p.Slide(n - 1)
	if err != nil {
		return 0, err
	}
	if err := s.LoadDimensions(a.ws.Codec()); err != nil {
		return 0, err
	}
	return n - 1, nil
}

func newSelectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select PROJECT SLIDE X Y",
		Short: "Add a selection of the default size centered at X,Y",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(args[0])
			if err != nil {
				return err
			}
			i, err := a.slideArg(p, args[1])
			if err != nil {
				return err
			}
			xy, err := parseInts(args[2:]...)
			if err != nil {
				return err
			}
			index, err := p.AddSelection(i, geometry.Point{X: xy[0], Y: xy[1]})
			if err != nil {
				return err
			}
			s, _ := p.Slide(i)
			sel, _ := s.Selection(index)
			fmt.Fprintf(cmd.OutOrStdout(), "#%d center %d,%d size %dx%d\n", index, sel.Center.X, sel.Center.Y, sel.Width, sel.Height)
			if n := s.Len(); n > p.SelectionTarget() {
				a.logger.Warn("slide has more selections than the target", "slide", s.FileName, "selections", n, "target", p.SelectionTarget())
			}
			return a.save(p)
		},
	}
}

func newUnselectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unselect PROJECT SLIDE INDEX",
		Short: "Remove a selection; later selections are renumbered",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(args[0])
			if err != nil {
				return err
			}
			n, err := parseInts(args[1:]...)
			if err != nil {
				return err
			}
			if err := p.RemoveSelection(n[0]-1, n[1]); err != nil {
				return err
			}
			return a.save(p)
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move PROJECT SLIDE INDEX X Y",
		Short: "Recenter a selection at X,Y",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(args[0])
			if err != nil {
				return err
			}
			i, err := a.slideArg(p, args[1])
			if err != nil {
				return err
			}
			n, err := parseInts(args[2:]...)
			if err != nil {
				return err
			}
			if err := p.MoveSelection(i, n[0], geometry.Point{X: n[1], Y: n[2]}); err != nil {
				return err
			}
			return a.save(p)
		},
	}
}

func newResizeCmd(a *app) *cobra.Command {
	var slideNum int
	var setDefault bool

	cmd := &cobra.Command{
		Use:   "resize PROJECT WIDTHxHEIGHT",
		Short: "Resize every selection, keeping them inside their images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(args[0])
			if err != nil {
				return err
			}
			width, height, err := parseSize(args[1])
			if err != nil {
				return err
			}
			for _, s := range p.Slides() {
				if err := s.LoadDimensions(a.ws.Codec()); err != nil {
					return err
				}
			}

			if slideNum > 0 {
				err = p.ResizeSelections(slideNum-1, width, height)
			} else {
				err = p.ResizeAllSelections(width, height)
			}
			if err != nil {
				return err
			}
			if setDefault {
				if err := p.SetDefaultSize(width, height); err != nil {
					return err
				}
			}
			return a.save(p)
		},
	}
	cmd.Flags().IntVar(&slideNum, "slide", 0, "resize only this slide (1-based)")
	cmd.Flags().BoolVar(&setDefault, "default", false, "also use the size for new selections")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var search []string
	var remove bool

	cmd := &cobra.Command{
		Use:   "verify PROJECT",
		Short: "Locate or remove slides whose image file is missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.ws.OpenProject(args[0])
			if err != nil && p == nil {
				return err
			}
			v, err := a.ws.Verifier()
			if err != nil {
				return err
			}
			if len(v.FindMissing()) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "all slide images found")
				return nil
			}

			for _, dir := range search {
				for _, i := range v.Unresolved() {
					s, _ := p.Slide(i)
					candidate := filepath.Join(dir, s.FileName)
					if !utils.FileExists(candidate) {
						continue
					}
					resolved, err := v.Relocate(i, candidate)
					if err != nil {
						a.logger.Warn("relocate failed", "slide", s.FileName, "error", err)
						continue
					}
					for _, j := range resolved {
						r, _ := p.Slide(j)
						fmt.Fprintf(cmd.OutOrStdout(), "located %s\n", r.Path)
					}
				}
			}

			if remove {
				for _, name := range v.MissingNames() {
					fmt.Fprintf(cmd.OutOrStdout(), "removing %s\n", name)
				}
				v.RemoveMissing()
			}
			if err := v.Finish(); err != nil {
				return err
			}
			return a.save(p)
		},
	}
	cmd.Flags().StringSliceVar(&search, "search", nil, "directories to look for missing images in")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove slides that cannot be located")
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	var out string
	var resolution float64

	cmd := &cobra.Command{
		Use:   "preview PROJECT",
		Short: "Write annotated previews with every selection outlined",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if resolution != 0 {
				a.cfg.Preview.Resolution = resolution
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			p, err := a.open(args[0])
			if err != nil {
				return err
			}
			if err := utils.EnsureDir(out); err != nil {
				return err
			}

			if err := a.ws.GeneratePreviews(cmd.Context(), a.progress("preview")); err != nil {
				a.logger.Warn("some previews could not be generated", "error", err)
			}
			for i, s := range p.Slides() {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				if _, ok := s.Preview(); !ok && geometry.ScaleDenominator(a.cfg.Preview.Resolution) != 1 {
					continue
				}
				path := filepath.Join(out, s.BaseName()+"_preview.png")
				if err := a.ws.AnnotatedPreview(i, path); err != nil {
					a.logger.Warn("preview failed", "slide", s.FileName, "error", err)
					continue
				}
				a.logger.Info("wrote", "path", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "previews", "output directory")
	cmd.Flags().Float64Var(&resolution, "resolution", 0, "preview resolution: 1, 0.5, 0.25 or 0.1")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var opts types.ExportOptions
	var slides []int

	cmd := &cobra.Command{
		Use:   "export PROJECT",
		Short: "Write one cropped image per selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(args[0]); err != nil {
				return err
			}
			for _, n := range slides {
				opts.Slides = append(opts.Slides, n-1)
			}

			report, err := a.ws.Export(cmd.Context(), opts, a.progress("export"))
			for _, name := range report.Exported {
				a.logger.Info("wrote", "path", filepath.Join(report.Directory, name))
			}
			for _, name := range report.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s\n", name)
			}
			if len(report.Skipped) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "cancelled: %d crops not written\n", len(report.Skipped))
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.OutputDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "output format: tif|png|jpg|webp")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent slides (default from config)")
	cmd.Flags().IntSliceVar(&slides, "slide", nil, "export only these slides (1-based)")
	return cmd
}
